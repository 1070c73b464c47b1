// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package stream discovers the currently playing song on a radio station.
//
// A station URL can point at one of several incompatible feeds: an HLS
// (#EXTM3U) playlist with artist/title tags, a raw ICY stream probed via
// ffprobe, or a JSON "now playing" API. Each parser turns the URL into an
// endless sequence of SongInfo; the dispatcher tries them in a fixed order
// and forwards the first one that accepts the stream.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SongInfo is the lowest-common-denominator observation emitted by a
// parser. Artist and File are optional depending on the feed format.
type SongInfo struct {
	Title  string
	Artist string
	File   string
}

// ErrFormat signals that a parser does not recognise the stream. The
// dispatcher treats it as a skip signal when no element has been emitted
// yet; any other error propagates.
var ErrFormat = errors.New("unrecognised stream format")

// EmitFunc receives observations from a parser. It may block while the
// downstream consumer works; parsers account for that time in their
// pacing. A non-nil return (typically ctx cancellation) stops the parser.
type EmitFunc func(ctx context.Context, info SongInfo) error

// Parser turns a station URL into an endless sequence of SongInfo.
// ReadSongInfo returns ErrFormat from the first probe when the stream is
// not in the parser's format, and otherwise only returns on cancellation
// or a real failure.
type Parser interface {
	ReadSongInfo(ctx context.Context, emit EmitFunc) error
}

// Dispatcher probes a station URL with each known parser in a fixed
// order: HLS, ICY, JSON API.
type Dispatcher struct {
	Client *http.Client

	// FFprobeBin overrides the ffprobe binary used by the ICY parser.
	FFprobeBin string

	// PollInterval overrides the 120s poll cadence of the ICY and JSON
	// API parsers. Used by tests.
	PollInterval time.Duration
}

// ReadSongInfo feeds emit from the first parser that accepts the URL.
// A parser is accepted once it emits at least one element without failing
// with ErrFormat on its first probe; from then on its stream is forwarded
// transparently, including any later errors. When every parser rejects
// the URL the dispatcher fails with ErrFormat.
func (d *Dispatcher) ReadSongInfo(ctx context.Context, url string, emit EmitFunc) error {
	parsers := []Parser{
		&HLS{Client: d.Client, URL: url},
		&ICY{URL: url, Bin: d.FFprobeBin, PollInterval: d.PollInterval},
		&RadioAPI{Client: d.Client, URL: url, PollInterval: d.PollInterval},
	}

	for _, p := range parsers {
		emitted := false
		err := p.ReadSongInfo(ctx, func(ctx context.Context, info SongInfo) error {
			emitted = true
			return emit(ctx, info)
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrFormat) && !emitted {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: no compatible parser found for %s", ErrFormat, url)
}

// sleep waits for d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
