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
	"time"

	"github.com/hrowan/radiolog/internal/models"
)

// UpsertStation reconciles a station row from config. The key is the
// stable identity: an existing row keeps its id and has name and url
// overwritten; a missing row is inserted.
func (db *DB) UpsertStation(ctx context.Context, key, name, url string) (*models.Station, error) {
	station := &models.Station{Key: key, Name: name, URL: url}
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT id FROM stations WHERE key = ?`, key)
		err := row.Scan(&station.ID)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx,
				`UPDATE stations SET name = ?, url = ? WHERE id = ?`, name, url, station.ID)
			if err != nil {
				return fmt.Errorf("failed to update station %s: %w", key, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			row := tx.QueryRowContext(ctx,
				`INSERT INTO stations (key, name, url) VALUES (?, ?, ?) RETURNING id`,
				key, name, url)
			if err := row.Scan(&station.ID); err != nil {
				return fmt.Errorf("failed to insert station %s: %w", key, err)
			}
		default:
			return fmt.Errorf("failed to look up station %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return station, nil
}

// GetStation returns the station with the given id.
func (db *DB) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	s := &models.Station{}
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, key, name, url FROM stations WHERE id = ?`, id)
	if err := row.Scan(&s.ID, &s.Key, &s.Name, &s.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get station %d: %w", id, err)
	}
	return s, nil
}

// GetStationByKey returns the station with the given key.
func (db *DB) GetStationByKey(ctx context.Context, key string) (*models.Station, error) {
	s := &models.Station{}
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, key, name, url FROM stations WHERE key = ?`, key)
	if err := row.Scan(&s.ID, &s.Key, &s.Name, &s.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get station %s: %w", key, err)
	}
	return s, nil
}

// ListStations returns all stations ordered by key.
func (db *DB) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, key, name, url FROM stations ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	defer rows.Close()

	var stations []models.Station
	for rows.Next() {
		var s models.Station
		if err := rows.Scan(&s.ID, &s.Key, &s.Name, &s.URL); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

// LastPlayed returns the most recent distinct songs heard on a station,
// newest first, capped at limit.
func (db *DB) LastPlayed(ctx context.Context, stationID int64, limit int) ([]models.TopSong, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT max(p."at") AS last_played, count(p.id) AS play_count,
		       s.id, s.key, s.artist, s.title, coalesce(s.spotify_uri, '')
		FROM plays p
		JOIN songs s ON p.song = s.id
		WHERE p.station = ?
		GROUP BY s.id, s.key, s.artist, s.title, s.spotify_uri
		ORDER BY last_played DESC
		LIMIT ?`, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query last played: %w", err)
	}
	defer rows.Close()

	return scanTopSongs(rows)
}

// TopSongs computes the reconciler aggregate: songs played on the station
// since the cutoff, ordered by play count descending then most recent play
// descending, capped at limit.
func (db *DB) TopSongs(ctx context.Context, stationID int64, since time.Time, limit int) ([]models.TopSong, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT max(p."at") AS last_played, count(p.id) AS play_count,
		       s.id, s.key, s.artist, s.title, coalesce(s.spotify_uri, '')
		FROM plays p
		JOIN songs s ON p.song = s.id
		WHERE p."at" > ? AND p.station = ?
		GROUP BY s.id, s.key, s.artist, s.title, s.spotify_uri
		ORDER BY play_count DESC, last_played DESC
		LIMIT ?`, since.UTC(), stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top songs: %w", err)
	}
	defer rows.Close()

	return scanTopSongs(rows)
}

func scanTopSongs(rows *sql.Rows) ([]models.TopSong, error) {
	var result []models.TopSong
	for rows.Next() {
		var ts models.TopSong
		if err := rows.Scan(&ts.LastPlayed, &ts.PlayCount,
			&ts.Song.ID, &ts.Song.Key, &ts.Song.Artist, &ts.Song.Title, &ts.Song.SpotifyURI); err != nil {
			return nil, fmt.Errorf("failed to scan aggregate row: %w", err)
		}
		result = append(result, ts)
	}
	return result, rows.Err()
}
