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

// GetState returns the opaque value stored under key.
func (db *DB) GetState(ctx context.Context, key models.StateKey) (string, error) {
	var value string
	row := db.conn.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, string(key))
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return value, nil
}

// UpsertState stores value under key, replacing any previous value. The
// write happens under the exclusive transaction so it cannot interleave
// with a concurrent reader-modify-writer.
func (db *DB) UpsertState(ctx context.Context, key models.StateKey, value string) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO state (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			string(key), value)
		if err != nil {
			return fmt.Errorf("failed to upsert state %s: %w", key, err)
		}
		return nil
	})
}
