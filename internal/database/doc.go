// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package database is the datastore adapter: DuckDB through database/sql,
// with an idempotent schema, globally serialised transactions, and the
// query surface used by the station monitor, the pending worker, the
// playlist reconciler and the token cache.
//
// The pending table doubles as a lease-based job queue: picking is a plain
// read, claiming is a conditional UPDATE on picked_at whose rowcount
// decides ownership, and resolution deletes the row in the same
// transaction that records the Play. The protocol stays correct with
// multiple processes because claims compare against the observed lease
// value, not just NULL.
package database
