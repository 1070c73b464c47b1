// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package spotify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/hrowan/radiolog/internal/config"
)

// AuthConfig builds the OAuth configuration for the catalog. The raw
// oauth2.Config is used (rather than the spotifyauth authenticator) so
// the token source can be wrapped to feed the token cache.
func AuthConfig(cfg *config.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes: []string{
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistModifyPublic,
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// AuthFlow is the one-shot interactive authorisation: the operator
// opens URL() in a browser while Wait() serves the redirect callback
// and exchanges the code for a token.
type AuthFlow struct {
	conf  *oauth2.Config
	state string
}

// NewAuthFlow prepares an authorisation flow with a random state.
func NewAuthFlow(cfg *config.SpotifyConfig) (*AuthFlow, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate oauth state: %w", err)
	}
	return &AuthFlow{conf: AuthConfig(cfg), state: hex.EncodeToString(buf)}, nil
}

// URL is the authorisation page the operator must visit.
func (f *AuthFlow) URL() string {
	return f.conf.AuthCodeURL(f.state)
}

// Wait serves the redirect endpoint until the callback arrives, then
// exchanges the authorisation code for a token.
func (f *AuthFlow) Wait(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(f.conf.RedirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect url %q: %w", f.conf.RedirectURL, err)
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	type result struct {
		tok *oauth2.Token
		err error
	}
	results := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("state") != f.state {
			http.Error(w, "state mismatch", http.StatusForbidden)
			results <- result{err: errors.New("oauth state mismatch")}
			return
		}
		code := r.FormValue("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			results <- result{err: fmt.Errorf("authorisation denied: %s", r.FormValue("error"))}
			return
		}
		tok, err := f.conf.Exchange(r.Context(), code)
		if err != nil {
			http.Error(w, "token exchange failed", http.StatusBadGateway)
			results <- result{err: fmt.Errorf("token exchange failed: %w", err)}
			return
		}
		fmt.Fprintln(w, "Authorised. You can close this tab.")
		results <- result{tok: tok}
	})

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			results <- result{err: serveErr}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		return res.tok, res.err
	}
}
