// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hrowan/radiolog/internal/models"
)

// SongByKey returns the song with the given fingerprint.
func (db *DB) SongByKey(ctx context.Context, key int64) (*models.Song, error) {
	return db.songBy(ctx, `SELECT id, key, artist, title, coalesce(spotify_uri, '')
		FROM songs WHERE key = ?`, key)
}

// SongByURI returns the song already canonicalised under the given
// Spotify URI, possibly with a different fingerprint.
func (db *DB) SongByURI(ctx context.Context, uri string) (*models.Song, error) {
	return db.songBy(ctx, `SELECT id, key, artist, title, coalesce(spotify_uri, '')
		FROM songs WHERE spotify_uri = ?`, uri)
}

func (db *DB) songBy(ctx context.Context, query string, arg any) (*models.Song, error) {
	s := &models.Song{}
	row := db.conn.QueryRowContext(ctx, query, arg)
	if err := row.Scan(&s.ID, &s.Key, &s.Artist, &s.Title, &s.SpotifyURI); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up song: %w", err)
	}
	return s, nil
}

// InsertSong stores a newly resolved song identity. Songs are immutable
// after insert; uniqueness on key, spotify_uri and (artist, title) is
// enforced by the schema.
func (db *DB) InsertSong(ctx context.Context, s *models.Song) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO songs (key, artist, title, spotify_uri) VALUES (?, ?, ?, ?) RETURNING id`,
			s.Key, s.Artist, s.Title, s.SpotifyURI)
		if err := row.Scan(&s.ID); err != nil {
			return fmt.Errorf("failed to insert song %q/%q: %w", s.Artist, s.Title, err)
		}
		return nil
	})
}
