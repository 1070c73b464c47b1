// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	spotifyapi "github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/metrics"
	"github.com/hrowan/radiolog/internal/tokencache"
)

// requestRate bounds outgoing Web API calls well below Spotify's
// rolling-window limit; the workload is a search every few minutes plus
// the occasional playlist write, so this is generous.
const requestRate = rate.Limit(5)

// Client is the production Catalog backed by the Spotify Web API.
// Token refreshes performed by the underlying HTTP client flow into the
// token cache so they survive a restart.
type Client struct {
	api     *spotifyapi.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[any]
}

var _ Catalog = (*Client)(nil)

// savingSource persists every token the inner source yields. The cache
// ignores tokens that have not rotated.
type savingSource struct {
	inner oauth2.TokenSource
	cache *tokencache.Cache
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.inner.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain catalog token: %w", err)
	}
	s.cache.Put(tok)
	return tok, nil
}

// NewClient builds a Catalog from the configured credentials and the
// token cache, which must already hold a token.
func NewClient(ctx context.Context, cfg *config.SpotifyConfig, cache *tokencache.Cache) (*Client, error) {
	tok, err := cache.Token()
	if err != nil {
		return nil, err
	}

	conf := AuthConfig(cfg)
	src := &savingSource{inner: conf.TokenSource(context.WithoutCancel(ctx), tok), cache: cache}
	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), src)

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "spotify",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &Client{
		api:     spotifyapi.New(httpClient, spotifyapi.WithRetry(true)),
		limiter: rate.NewLimiter(requestRate, 1),
		breaker: breaker,
	}, nil
}

// call runs one Web API operation through the limiter and breaker,
// recording metrics by operation name.
func (c *Client) call(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := c.breaker.Execute(fn)
	metrics.CatalogRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.CatalogRequests.WithLabelValues(op, "ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CatalogRequests.WithLabelValues(op, "open_circuit").Inc()
	default:
		metrics.CatalogRequests.WithLabelValues(op, "error").Inc()
	}
	return out, err
}

// SearchTrack returns the first track hit for query, or nil on a miss.
func (c *Client) SearchTrack(ctx context.Context, query string) (*Track, error) {
	out, err := c.call(ctx, "search", func() (any, error) {
		return c.api.Search(ctx, query, spotifyapi.SearchTypeTrack, spotifyapi.Limit(1))
	})
	if err != nil {
		return nil, fmt.Errorf("track search failed: %w", err)
	}

	res := out.(*spotifyapi.SearchResult)
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, nil
	}

	hit := res.Tracks.Tracks[0]
	track := &Track{URI: string(hit.URI), Title: hit.Name}
	if len(hit.Artists) > 0 {
		track.Artist = hit.Artists[0].Name
	}
	return track, nil
}

// CurrentUserID returns the authorised user's id.
func (c *Client) CurrentUserID(ctx context.Context) (string, error) {
	out, err := c.call(ctx, "current_user", func() (any, error) {
		return c.api.CurrentUser(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("failed to read current user: %w", err)
	}
	return out.(*spotifyapi.PrivateUser).ID, nil
}

// CreatePlaylist creates a private, non-collaborative playlist and
// returns its URI.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string) (string, error) {
	out, err := c.call(ctx, "create_playlist", func() (any, error) {
		return c.api.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	})
	if err != nil {
		return "", fmt.Errorf("failed to create playlist %q: %w", name, err)
	}
	return string(out.(*spotifyapi.FullPlaylist).URI), nil
}

// ReplacePlaylistItems replaces the playlist contents in one call.
func (c *Client) ReplacePlaylistItems(ctx context.Context, playlistURI string, trackURIs []string) error {
	ids := make([]spotifyapi.ID, 0, len(trackURIs))
	for _, uri := range trackURIs {
		ids = append(ids, idFromURI(uri))
	}
	_, err := c.call(ctx, "replace_playlist_items", func() (any, error) {
		return nil, c.api.ReplacePlaylistTracks(ctx, idFromURI(playlistURI), ids...)
	})
	if err != nil {
		return fmt.Errorf("failed to replace playlist items: %w", err)
	}
	return nil
}

// idFromURI extracts the bare id from a "spotify:<kind>:<id>" URI. A
// value without colons is assumed to already be an id.
func idFromURI(uri string) spotifyapi.ID {
	if i := strings.LastIndexByte(uri, ':'); i >= 0 {
		return spotifyapi.ID(uri[i+1:])
	}
	return spotifyapi.ID(uri)
}
