// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
)

// RadioAPI reads a JSON "now playing" API of the shape used by the Rova
// network: the first element of nowPlaying carries name and artist.
type RadioAPI struct {
	Client *http.Client
	URL    string

	// PollInterval overrides the fetch cadence. Default: 120s.
	PollInterval time.Duration
}

type radioAPIResponse struct {
	NowPlaying []struct {
		Name   string `json:"name"`
		Artist string `json:"artist"`
	} `json:"nowPlaying"`
}

// ReadSongInfo fetches the API forever, emitting only when the now
// playing entry changes. A response that does not match the expected
// shape fails with ErrFormat.
func (p *RadioAPI) ReadSongInfo(ctx context.Context, emit EmitFunc) error {
	interval := p.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	var prev *SongInfo
	for {
		info, err := p.fetch(ctx, client)
		if err != nil {
			return err
		}
		if prev == nil || *prev != info {
			prev = &info
			if err := emit(ctx, info); err != nil {
				return err
			}
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (p *RadioAPI) fetch(ctx context.Context, client *http.Client) (SongInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return SongInfo{}, fmt.Errorf("failed to build now-playing request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return SongInfo{}, fmt.Errorf("failed to fetch now-playing %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SongInfo{}, fmt.Errorf("failed to read now-playing response: %w", err)
	}

	var out radioAPIResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return SongInfo{}, fmt.Errorf("%w: not a radio api stream", ErrFormat)
	}
	if len(out.NowPlaying) == 0 || out.NowPlaying[0].Name == "" || out.NowPlaying[0].Artist == "" {
		return SongInfo{}, fmt.Errorf("%w: not a radio api stream", ErrFormat)
	}

	return SongInfo{Artist: out.NowPlaying[0].Artist, Title: out.NowPlaying[0].Name}, nil
}
