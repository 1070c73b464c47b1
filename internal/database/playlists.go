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

// EnsurePlaylist returns the playlist row for (station, type), inserting
// an empty one if none exists yet. At most one row exists per pair.
func (db *DB) EnsurePlaylist(ctx context.Context, stationID int64, typ models.PlaylistType) (*models.Playlist, error) {
	pl, err := db.getPlaylist(ctx, stationID, typ)
	if err == nil {
		return pl, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	pl = &models.Playlist{Station: stationID, Type: typ}
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO playlists (station, type) VALUES (?, ?) RETURNING id`,
			stationID, string(typ))
		if err := row.Scan(&pl.ID); err != nil {
			return fmt.Errorf("failed to insert playlist row: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pl, nil
}

func (db *DB) getPlaylist(ctx context.Context, stationID int64, typ models.PlaylistType) (*models.Playlist, error) {
	pl := &models.Playlist{}
	var typStr string
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, station, type, coalesce(spotify_uri, '')
		FROM playlists WHERE station = ? AND type = ?`, stationID, string(typ))
	if err := row.Scan(&pl.ID, &pl.Station, &typStr, &pl.SpotifyURI); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up playlist: %w", err)
	}
	pl.Type = models.PlaylistType(typStr)
	return pl, nil
}

// ClaimPlaylistURI resolves the remote URI for a playlist row. If the row
// already has a URI it is returned untouched; the URI is monotonic and is
// never overwritten. Otherwise create is invoked while the row is held
// under the exclusive transaction, and its result is stored.
func (db *DB) ClaimPlaylistURI(ctx context.Context, playlistID int64, create func(context.Context) (string, error)) (string, error) {
	var uri string
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var current sql.NullString
		row := tx.QueryRowContext(ctx,
			`SELECT spotify_uri FROM playlists WHERE id = ?`, playlistID)
		if err := row.Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to read playlist %d: %w", playlistID, err)
		}
		if current.Valid && current.String != "" {
			uri = current.String
			return nil
		}

		created, err := create(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE playlists SET spotify_uri = ? WHERE id = ?`, created, playlistID); err != nil {
			return fmt.Errorf("failed to store playlist uri: %w", err)
		}
		uri = created
		return nil
	})
	if err != nil {
		return "", err
	}
	return uri, nil
}
