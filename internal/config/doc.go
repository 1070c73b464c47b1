// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package config loads and validates Radiolog configuration from layered
// sources: built-in defaults, an optional YAML file, and RDB_-prefixed
// environment variables (highest priority). Station filter regexes are
// compiled once at load time; validation failures are fatal at startup.
package config
