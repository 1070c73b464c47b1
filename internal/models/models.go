// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package models

import "time"

// Station is a named radio stream with a canonical URL.
// Rows are upserted by key on startup; id is assigned by the database.
type Station struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Pending is a raw, not-yet-resolved observation of a song on a station.
// Rows are inserted by the station monitor and deleted by the pending
// worker in the same transaction that records the Play.
type Pending struct {
	ID       int64      `json:"id"`
	Station  int64      `json:"station"`
	Artist   string     `json:"artist"`
	Title    string     `json:"title"`
	SeenAt   time.Time  `json:"seen_at"`
	PickedAt *time.Time `json:"picked_at,omitempty"`
}

// Song is a canonicalised track identity. Key is the first 8 bytes of
// SHA-256 over the normalised artist+title form, little-endian signed.
// A Song is never mutated after insert.
type Song struct {
	ID         int64  `json:"id"`
	Key        int64  `json:"key"`
	Artist     string `json:"artist"`
	Title      string `json:"title"`
	SpotifyURI string `json:"spotify_uri"`
}

// Play is an append-only record that a Song was heard on a Station.
type Play struct {
	ID      int64     `json:"id"`
	Station int64     `json:"station"`
	Song    int64     `json:"song"`
	At      time.Time `json:"at"`
}

// PlaylistType enumerates the kinds of managed playlists.
type PlaylistType string

// Top is currently the only playlist type: most-played over a window.
const PlaylistTypeTop PlaylistType = "top"

// Playlist tracks the remote playlist created for a (station, type) pair.
// SpotifyURI is empty until the playlist exists remotely and is never
// cleared once set.
type Playlist struct {
	ID         int64        `json:"id"`
	Station    int64        `json:"station"`
	Type       PlaylistType `json:"type"`
	SpotifyURI string       `json:"spotify_uri"`
}

// StateKey enumerates keys in the process state table.
type StateKey string

// StateKeySpotifyAuth holds the serialised OAuth token for the catalog.
const StateKeySpotifyAuth StateKey = "spotify_auth"

// TopSong is one row of the reconciler's top-N aggregate: a song with
// its play count and most recent play inside the window.
type TopSong struct {
	Song       Song      `json:"song"`
	PlayCount  int64     `json:"play_count"`
	LastPlayed time.Time `json:"last_played"`
}
