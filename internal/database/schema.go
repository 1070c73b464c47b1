// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createSchema creates the sequences, tables and indexes. All statements
// are idempotent so startup against an existing database is a no-op.
func (db *DB) createSchema() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_station_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_pending_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_song_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_play_id START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_playlist_id START 1`,

		`CREATE TABLE IF NOT EXISTS stations (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_station_id'),
			key TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			url TEXT NOT NULL
		)`,

		// Transient queue of raw observations. picked_at is the lease
		// stamp; a row is claimable when picked_at is NULL or expired.
		`CREATE TABLE IF NOT EXISTS pending (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_pending_id'),
			station BIGINT NOT NULL,
			artist TEXT NOT NULL,
			title TEXT NOT NULL,
			seen_at TIMESTAMP NOT NULL,
			picked_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS songs (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_song_id'),
			key BIGINT NOT NULL UNIQUE,
			artist TEXT NOT NULL,
			title TEXT NOT NULL,
			spotify_uri TEXT UNIQUE,
			UNIQUE (artist, title)
		)`,

		// "at" is a reserved word in DuckDB and must stay quoted in
		// every statement touching this table.
		`CREATE TABLE IF NOT EXISTS plays (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_play_id'),
			station BIGINT NOT NULL,
			song BIGINT NOT NULL,
			"at" TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS playlists (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_playlist_id'),
			station BIGINT NOT NULL,
			type TEXT NOT NULL,
			spotify_uri TEXT UNIQUE,
			UNIQUE (station, type)
		)`,

		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_pending_seen_at ON pending (seen_at)`,
		`CREATE INDEX IF NOT EXISTS idx_plays_station_at ON plays (station, "at")`,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema statement: %s: %w", query, err)
		}
	}
	return nil
}
