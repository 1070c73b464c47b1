// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package tokencache keeps the catalog OAuth token available to the
// authoriser without blocking it on the database.
//
// The token rotates: every refresh yields a new access token that must
// survive a restart, or the operator has to re-authorise by hand. Reads
// are served from memory; writes are coalesced by a background Writer
// that persists the latest token to the state table and performs one
// final drain write on shutdown.
package tokencache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"

	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/models"
)

// ErrNoToken is returned when neither the state table nor the
// configured seed provides a token.
var ErrNoToken = errors.New("no stored token")

// storedToken is the persisted wire form. The field set matches what
// common Spotify clients write, so a seed produced elsewhere loads
// unchanged. ExpiresAt is a Unix timestamp in seconds.
type storedToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
}

// Encode serialises a token to its persisted JSON form.
func Encode(tok *oauth2.Token) ([]byte, error) {
	st := storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		st.ExpiresAt = tok.Expiry.Unix()
	}
	out, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}
	return out, nil
}

// Decode parses the persisted JSON form back into a token.
func Decode(data []byte) (*oauth2.Token, error) {
	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	if st.AccessToken == "" && st.RefreshToken == "" {
		return nil, fmt.Errorf("decoded token carries no credentials")
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
	}
	if st.ExpiresAt != 0 {
		tok.Expiry = time.Unix(st.ExpiresAt, 0)
	}
	return tok, nil
}

// EncodeSeed renders a token as the base64 string handed to operators
// by the authorise flow and accepted in spotify.auth_seed.
func EncodeSeed(tok *oauth2.Token) (string, error) {
	raw, err := Encode(tok)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSeed parses an operator-supplied base64 seed.
func DecodeSeed(seed string) (*oauth2.Token, error) {
	raw, err := base64.StdEncoding.DecodeString(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode auth seed: %w", err)
	}
	return Decode(raw)
}

// Cache holds the current token in memory and tracks whether it has
// changed since the last persist. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	token *oauth2.Token

	// dirty carries at most one pending-save signal; coalescing repeated
	// refreshes into a single write is the point.
	dirty chan struct{}
}

// New returns a cache primed with tok, which may be nil.
func New(tok *oauth2.Token) *Cache {
	return &Cache{token: tok, dirty: make(chan struct{}, 1)}
}

// Load builds a cache from the state table, falling back to the
// operator seed when the table has no token yet. ErrNoToken means the
// authorise flow has to be run first.
func Load(ctx context.Context, db *database.DB, seed string) (*Cache, error) {
	raw, err := db.GetState(ctx, models.StateKeySpotifyAuth)
	switch {
	case err == nil:
		tok, err := Decode([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("stored token is corrupt: %w", err)
		}
		return New(tok), nil
	case errors.Is(err, database.ErrNotFound):
		if seed == "" {
			return nil, ErrNoToken
		}
		tok, err := DecodeSeed(seed)
		if err != nil {
			return nil, err
		}
		// Seeded tokens are marked dirty so the writer persists them and
		// the seed can be dropped from the config afterwards.
		c := New(tok)
		c.markDirty()
		return c, nil
	default:
		return nil, err
	}
}

// Token returns the current token, or ErrNoToken when empty. The shape
// matches oauth2.TokenSource so a Cache can back a reuse source.
func (c *Cache) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil {
		return nil, ErrNoToken
	}
	return c.token, nil
}

// Put stores tok and signals the writer. A token identical to the
// current one is stored but not re-signalled.
func (c *Cache) Put(tok *oauth2.Token) {
	c.mu.Lock()
	changed := c.token == nil ||
		c.token.AccessToken != tok.AccessToken ||
		c.token.RefreshToken != tok.RefreshToken
	c.token = tok
	c.mu.Unlock()
	if changed {
		c.markDirty()
	}
}

// Dirty exposes the pending-save signal for the writer.
func (c *Cache) Dirty() <-chan struct{} {
	return c.dirty
}

func (c *Cache) markDirty() {
	select {
	case c.dirty <- struct{}{}:
	default:
	}
}

// saveRetryDelay is how long the writer backs off after a failed save
// before re-selecting on the dirty signal.
const saveRetryDelay = 5 * time.Second

// Writer persists the cache to the state table whenever it turns dirty.
// It runs as a service under the supervision tree.
type Writer struct {
	DB    *database.DB
	Cache *Cache

	// RetryDelay overrides the backoff after a failed save. Used by tests.
	RetryDelay time.Duration
}

// Serve waits for save signals and writes the latest token. On
// cancellation any still-pending signal is drained with one final write
// so a refresh that raced shutdown is not lost. A failed save is logged
// and the signal requeued, so the token is retried after a backoff or
// by the drain write; the writer itself keeps serving.
func (w *Writer) Serve(ctx context.Context) error {
	log := logging.With().Str("component", "tokenwriter").Logger()
	retry := w.RetryDelay
	if retry <= 0 {
		retry = saveRetryDelay
	}
	for {
		select {
		case <-ctx.Done():
			select {
			case <-w.Cache.Dirty():
				if err := w.save(context.WithoutCancel(ctx)); err != nil {
					log.Error().Err(err).Msg("Final token save failed")
				}
			default:
			}
			return ctx.Err()
		case <-w.Cache.Dirty():
			// The signal may have raced cancellation; treat it as the
			// final drain write in that case.
			if ctx.Err() != nil {
				if err := w.save(context.WithoutCancel(ctx)); err != nil {
					log.Error().Err(err).Msg("Final token save failed")
				}
				return ctx.Err()
			}
			if err := w.save(ctx); err != nil {
				log.Error().Err(err).Msg("Token save failed")
				w.Cache.markDirty()
				waitRetry(ctx, retry)
				continue
			}
			log.Debug().Msg("Token persisted")
		}
	}
}

// waitRetry sleeps for d or until cancellation, whichever comes first.
func waitRetry(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (w *Writer) save(ctx context.Context) error {
	tok, err := w.Cache.Token()
	if err != nil {
		return err
	}
	raw, err := Encode(tok)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return w.DB.UpsertState(ctx, models.StateKeySpotifyAuth, string(raw))
}
