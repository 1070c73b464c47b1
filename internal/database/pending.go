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

// LeaseDuration is how long a claimed pending row is owned by a worker.
// After expiry the row becomes claimable again, which is the implicit
// retry path for rows whose processing failed.
const LeaseDuration = 5 * time.Minute

// InsertPending records a raw observation in its own transaction.
func (db *DB) InsertPending(ctx context.Context, p *models.Pending) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			`INSERT INTO pending (station, artist, title, seen_at) VALUES (?, ?, ?, ?) RETURNING id`,
			p.Station, p.Artist, p.Title, p.SeenAt.UTC())
		if err := row.Scan(&p.ID); err != nil {
			return fmt.Errorf("failed to insert pending observation: %w", err)
		}
		return nil
	})
}

// NextPending returns the oldest claimable pending row: one whose lease
// is unset or expired relative to now. Returns ErrNotFound when the
// queue is empty.
func (db *DB) NextPending(ctx context.Context, now time.Time) (*models.Pending, error) {
	cutoff := now.UTC().Add(-LeaseDuration)
	p := &models.Pending{}
	var pickedAt sql.NullTime
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, station, artist, title, seen_at, picked_at
		FROM pending
		WHERE picked_at IS NULL OR picked_at <= ?
		ORDER BY seen_at
		LIMIT 1`, cutoff)
	if err := row.Scan(&p.ID, &p.Station, &p.Artist, &p.Title, &p.SeenAt, &pickedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to pick pending row: %w", err)
	}
	if pickedAt.Valid {
		t := pickedAt.Time
		p.PickedAt = &t
	}
	return p, nil
}

// ClaimPending stamps the lease on a pending row. The claim succeeds only
// if picked_at still has the value observed at pick time, so two workers
// racing on the same row resolve to exactly one owner. Returns false when
// another worker won.
func (db *DB) ClaimPending(ctx context.Context, p *models.Pending, now time.Time) (bool, error) {
	var claimed bool
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		var observed any
		if p.PickedAt != nil {
			observed = p.PickedAt.UTC()
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE pending SET picked_at = ?
			WHERE id = ? AND picked_at IS NOT DISTINCT FROM ?`,
			now.UTC(), p.ID, observed)
		if err != nil {
			return fmt.Errorf("failed to claim pending row %d: %w", p.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read claim rowcount: %w", err)
		}
		claimed = n == 1
		return nil
	})
	return claimed, err
}

// Resolve commits the outcome of processing a pending row in a single
// transaction: the Play is recorded when song is non-nil, and the pending
// row is deleted either way.
func (db *DB) Resolve(ctx context.Context, pendingID int64, play *models.Play) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		if play != nil {
			row := tx.QueryRowContext(ctx,
				`INSERT INTO plays (station, song, "at") VALUES (?, ?, ?) RETURNING id`,
				play.Station, play.Song, play.At.UTC())
			if err := row.Scan(&play.ID); err != nil {
				return fmt.Errorf("failed to insert play: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending WHERE id = ?`, pendingID); err != nil {
			return fmt.Errorf("failed to delete pending row %d: %w", pendingID, err)
		}
		return nil
	})
}

// PendingCount returns the current queue depth.
func (db *DB) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM pending`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending rows: %w", err)
	}
	return n, nil
}
