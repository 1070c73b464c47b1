// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// hlsMagic is the mandatory first bytes of an #EXTM3U playlist.
const hlsMagic = "#EXTM3U"

// hlsDedupWindow is the number of recently seen segment URIs remembered
// per parser instance. A segment may be emitted again only after this
// many other segments have been observed.
const hlsDedupWindow = 20

// hlsInitialTargetDuration is the pacing start value for each playlist
// fetch, in seconds. The value only ever shrinks within a fetch: the
// playlist's own #EXT-X-TARGETDURATION, segment durations, and time spent
// in the downstream consumer all reduce it.
const hlsInitialTargetDuration = 5.0

// HLS reads song observations out of an #EXTM3U playlist. Segment tags
// may carry artist and title attributes; variant playlists referenced by
// #EXT-X-STREAM-INF are followed recursively.
type HLS struct {
	Client *http.Client
	URL    string
}

// ReadSongInfo polls the playlist forever, emitting each new segment once
// per dedup window and sleeping the adaptive target duration between
// fetches. The first probe fails with ErrFormat when the response does
// not start with #EXTM3U.
func (h *HLS) ReadSongInfo(ctx context.Context, emit EmitFunc) error {
	// The window starts empty so a segment without a URI line (an empty
	// File) still emits like any other first sighting.
	recent := make([]string, 0, hlsDedupWindow)
	notRecent := func(file string) bool {
		for _, f := range recent {
			if f == file {
				return false
			}
		}
		recent = append(recent, file)
		if len(recent) > hlsDedupWindow {
			recent = recent[1:]
		}
		return true
	}

	for {
		target, err := h.readPlaylist(ctx, emit, notRecent)
		if err != nil {
			return err
		}
		if err := sleep(ctx, time.Duration(target*float64(time.Second))); err != nil {
			return err
		}
	}
}

// readPlaylist fetches and consumes one playlist document, returning the
// remaining target duration to sleep before the next fetch. A variant
// playlist reference hands control to a nested parser and never returns
// normally.
func (h *HLS) readPlaylist(ctx context.Context, emit EmitFunc, notRecent func(string) bool) (float64, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build playlist request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch playlist %s: %w", h.URL, err)
	}
	defer resp.Body.Close()

	br := bufio.NewReader(resp.Body)

	header := make([]byte, len(hlsMagic))
	if _, err := io.ReadFull(br, header); err != nil || string(header) != hlsMagic {
		return 0, fmt.Errorf("%w: not an m3u8 stream", ErrFormat)
	}

	// Lines are consumed with a one-line lookahead: a tag line plus the
	// URI line that follows it. EOF reads as empty lines and ends the
	// document.
	readLine := func() (string, error) {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read playlist line: %w", err)
		}
		return strings.TrimSpace(line), nil
	}

	// Consume the rest of the header line.
	if _, err := readLine(); err != nil {
		return 0, err
	}

	target := hlsInitialTargetDuration
	line2, err := readLine()
	if err != nil {
		return 0, err
	}
	for {
		line1 := line2
		if line2, err = readLine(); err != nil {
			return 0, err
		}
		if line1 == "" {
			break
		}

		tag, value, _ := strings.Cut(line1, ":")
		switch tag {
		case "#EXT-X-STREAM-INF":
			// Variant playlist: forward its observations, subject to
			// this instance's dedup window.
			sub := &HLS{Client: h.Client, URL: line2}
			return 0, sub.ReadSongInfo(ctx, func(ctx context.Context, info SongInfo) error {
				if !notRecent(info.File) {
					return nil
				}
				return emit(ctx, info)
			})

		case "#EXT-X-TARGETDURATION":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return 0, fmt.Errorf("invalid #EXT-X-TARGETDURATION %q: %w", value, err)
			}
			target = math.Min(target, math.Max(float64(n), 1))

		case "#EXTINF":
			info, duration, err := parseInf(value, line2)
			if err != nil {
				return 0, err
			}
			target = math.Max(0, math.Min(target, duration)-1)
			if notRecent(info.File) {
				start := time.Now()
				if err := emit(ctx, info); err != nil {
					return 0, err
				}
				target = math.Max(0, target-time.Since(start).Seconds())
			}
		}
	}

	return target, nil
}

// parseInf parses an #EXTINF value of the form
//
//	<duration>,key="value",key="value",...
//
// Values are double-quoted with backslash escapes; characters outside
// quotes are not part of the value.
func parseInf(tagLine, uriLine string) (SongInfo, float64, error) {
	durStr, rest, _ := strings.Cut(tagLine, ",")
	duration, err := strconv.ParseFloat(strings.TrimSpace(durStr), 64)
	if err != nil {
		return SongInfo{}, 0, fmt.Errorf("invalid #EXTINF duration %q: %w", durStr, err)
	}

	tags := parseInfAttrs(rest)
	return SongInfo{
		File:   uriLine,
		Artist: tags["artist"],
		Title:  tags["title"],
	}, duration, nil
}

// parseInfAttrs runs the small attribute state machine over the part of
// the #EXTINF line after the duration.
func parseInfAttrs(s string) map[string]string {
	tags := make(map[string]string)

	pos := 0
	pop := func() (byte, bool) {
		if pos >= len(s) {
			return 0, true
		}
		c := s[pos]
		pos++
		return c, false
	}
	// until consumes up to and including the delimiter, returning the
	// bytes before it; at end of input it returns what is left.
	until := func(delim byte) string {
		start := pos
		for pos < len(s) && s[pos] != delim {
			pos++
		}
		out := s[start:pos]
		if pos < len(s) {
			pos++
		}
		return out
	}

	eol := false
	for !eol {
		key := until('=')

		var value strings.Builder
		escape := false
		quote := false
	valueLoop:
		for {
			c, end := pop()
			if end {
				eol = true
				break
			}
			switch {
			case escape:
				value.WriteByte(c)
				escape = false
			case c == '\\':
				escape = true
			case quote && c == '"':
				quote = false
			case quote:
				value.WriteByte(c)
			case c == '"':
				quote = true
			case c == ',':
				// Unquoted comma ends this attribute.
				break valueLoop
			}
		}

		tags[key] = value.String()
	}
	return tags
}
