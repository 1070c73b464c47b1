// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package models defines the persistent entities shared across Radiolog:
// stations, pending observations, canonical songs, plays, playlists and
// process state. The structs map 1:1 onto the relational schema owned by
// internal/database.
package models
