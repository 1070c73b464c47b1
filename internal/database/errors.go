// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package database

import "errors"

// ErrNotFound is returned by lookups when no matching row exists.
var ErrNotFound = errors.New("not found")
