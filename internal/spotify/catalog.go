// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package spotify wraps the Spotify Web API behind the narrow Catalog
// interface the resolver and reconciler need. The concrete client adds
// rate limiting and a circuit breaker; tests substitute a fake.
package spotify

import "context"

// Track is the catalog's view of a search hit. Artist and Title are the
// canonical names from the catalog, which replace whatever the stream
// reported.
type Track struct {
	URI    string
	Artist string
	Title  string
}

// Catalog is the set of Spotify operations used by radiolog.
type Catalog interface {
	// SearchTrack looks the free-text query up and returns the best
	// match, or nil when the catalog has no hit.
	SearchTrack(ctx context.Context, query string) (*Track, error)

	// CurrentUserID returns the id of the authorised user, the owner of
	// managed playlists.
	CurrentUserID(ctx context.Context) (string, error)

	// CreatePlaylist creates a private playlist for the user and returns
	// its URI.
	CreatePlaylist(ctx context.Context, userID, name, description string) (string, error)

	// ReplacePlaylistItems replaces the playlist's entire contents with
	// the given track URIs, in order.
	ReplacePlaylistItems(ctx context.Context, playlistURI string, trackURIs []string) error
}
