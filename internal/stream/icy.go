// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// defaultPollInterval is the cadence of the ICY and JSON API parsers.
const defaultPollInterval = 120 * time.Second

// ICY discovers the current song on a raw ICY/shoutcast stream by probing
// it with ffprobe and reading the StreamTitle tag. Titles of the form
// "Artist - Title" are split on the first separator.
type ICY struct {
	URL string

	// Bin is the ffprobe binary. Default: "ffprobe" from PATH.
	Bin string

	// PollInterval overrides the probe cadence. Default: 120s.
	PollInterval time.Duration
}

// ffprobeOut is the subset of `ffprobe -show_format -of json` we read.
type ffprobeOut struct {
	Format struct {
		Tags struct {
			StreamTitle string `json:"StreamTitle"`
		} `json:"tags"`
	} `json:"format"`
}

// ReadSongInfo probes the stream forever, emitting only when the title
// changes. A probe whose output does not look like an ICY stream fails
// with ErrFormat.
func (p *ICY) ReadSongInfo(ctx context.Context, emit EmitFunc) error {
	interval := p.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var prev *SongInfo
	for {
		info, err := p.probe(ctx)
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

// probe runs one ffprobe invocation and extracts the StreamTitle.
func (p *ICY) probe(ctx context.Context) (SongInfo, error) {
	bin := p.Bin
	if bin == "" {
		bin = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, bin, "-v", "error", "-show_format", "-of", "json", p.URL)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// On cancellation the process is killed; WaitDelay bounds how long we
	// wait for its pipes so descriptors are not leaked.
	cmd.WaitDelay = 5 * time.Second

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return SongInfo{}, ctx.Err()
	}
	if runErr != nil {
		// ffprobe exits non-zero for streams it cannot read; that is a
		// format rejection, with stderr kept for diagnostics. Anything
		// else (binary missing, fork failure) is a real error.
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return SongInfo{}, fmt.Errorf("%w: ffprobe failed on %s: %v: %s",
				ErrFormat, p.URL, runErr, strings.TrimSpace(stderr.String()))
		}
		return SongInfo{}, fmt.Errorf("failed to run ffprobe: %w", runErr)
	}

	var out ffprobeOut
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil || out.Format.Tags.StreamTitle == "" {
		return SongInfo{}, fmt.Errorf("%w: not an icy stream", ErrFormat)
	}

	title := out.Format.Tags.StreamTitle
	if artist, rest, found := strings.Cut(title, " - "); found {
		return SongInfo{Artist: artist, Title: rest}, nil
	}
	return SongInfo{Title: title}, nil
}
