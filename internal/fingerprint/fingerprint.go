// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package fingerprint derives the stable 64-bit song identity used to
// de-duplicate observations across stations, restarts and processes.
//
// The fingerprint is a pure function of the normalised artist+title
// string: lowercase, " - " separators removed, optional per-station
// blank filter applied, punctuation stripped, whitespace collapsed,
// then the first 8 bytes of SHA-256 interpreted little-endian as a
// signed integer. The same input must hash identically in every
// implementation, so the character classes here are Unicode-aware.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"regexp"
	"strings"
)

var (
	// Word characters are Unicode letters, digits and underscore.
	// Go's \s is ASCII-only, so the whitespace set is widened to the
	// Unicode spaces (NBSP and friends) plus NEL and the information
	// separators; otherwise a non-breaking space would be stripped as
	// punctuation instead of collapsing to a plain space.
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}\x{85}\x{1C}-\x{1F}]`)
	whitespace = regexp.MustCompile(`[\s\p{Z}\x{85}\x{1C}-\x{1F}]+`)
)

// Normalise produces the canonical lowercase form of an observation.
// blank, when non-nil, is the station's configured blank filter and is
// substituted out before punctuation stripping.
func Normalise(artist, title string, blank *regexp.Regexp) string {
	s := strings.ToLower(artist + " " + title)
	s = strings.ReplaceAll(s, " - ", " ")
	if blank != nil {
		s = blank.ReplaceAllString(s, "")
	}
	return s
}

// Key computes the signed 64-bit fingerprint for an observation.
func Key(artist, title string, blank *regexp.Regexp) int64 {
	return KeyOf(Normalise(artist, title, blank))
}

// KeyOf computes the fingerprint of an already-normalised string.
func KeyOf(normalised string) int64 {
	s := nonWord.ReplaceAllString(normalised, "")
	s = whitespace.ReplaceAllString(s, " ")
	digest := sha256.Sum256([]byte(s))
	return int64(binary.LittleEndian.Uint64(digest[:8]))
}
