// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration document.
type Config struct {
	Stations []StationConfig `koanf:"stations" validate:"required,min=1,dive"`
	Database DatabaseConfig  `koanf:"database"`
	Spotify  SpotifyConfig   `koanf:"spotify"`
	Admin    AdminConfig     `koanf:"admin"`
	Logging  LoggingConfig   `koanf:"logging"`
}

// StationConfig describes one monitored radio station.
type StationConfig struct {
	// Key is the stable short identifier for the station. It survives
	// renames: name and url are reconciled from config on each startup,
	// the key never changes.
	Key  string `koanf:"key" validate:"required"`
	Name string `koanf:"name" validate:"required"`
	URL  string `koanf:"url" validate:"required,url"`

	Filters   *FilterConfig    `koanf:"filters"`
	Playlists []PlaylistConfig `koanf:"playlists" validate:"dive"`
}

// FilterConfig holds the optional per-station observation filters.
// Both are regular expressions matched against the normalised
// (lowercase) artist+title form.
type FilterConfig struct {
	// Blank matches substrings to remove before fingerprinting,
	// e.g. a station's jingle suffix.
	Blank string `koanf:"blank"`

	// Ignore matches observations that should be dropped entirely,
	// e.g. news bulletins.
	Ignore string `koanf:"ignore"`

	blankRe  *regexp.Regexp
	ignoreRe *regexp.Regexp
}

// BlankRE returns the compiled blank filter, or nil if not configured.
func (f *FilterConfig) BlankRE() *regexp.Regexp {
	if f == nil {
		return nil
	}
	return f.blankRe
}

// IgnoreRE returns the compiled ignore filter, or nil if not configured.
func (f *FilterConfig) IgnoreRE() *regexp.Regexp {
	if f == nil {
		return nil
	}
	return f.ignoreRe
}

// PlaylistConfig describes one managed playlist for a station.
type PlaylistConfig struct {
	Type  string `koanf:"type" validate:"omitempty,oneof=top"`
	Days  int    `koanf:"days" validate:"omitempty,min=1"`
	Limit int    `koanf:"limit" validate:"omitempty,min=1"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for an
	// in-process database (tests).
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// SpotifyConfig holds catalog credentials. AuthSeed is the operator-supplied
// base64(JSON OAuth token) produced by the authorise command; it is only
// consulted when the state table has no stored token yet.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	AuthSeed     string `koanf:"auth_seed"`
	RedirectURL  string `koanf:"redirect_url"`
}

// AdminConfig holds settings for the read-only admin HTTP API.
type AdminConfig struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port" validate:"omitempty,min=1,max=65535"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Stations have
// no default: a config without stations fails validation.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/radiolog.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:9090/callback",
		},
		Admin: AdminConfig{
			Enabled: false,
			Host:    "0.0.0.0",
			Port:    3873,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration and compiles station filters.
// It must be called before the filters are used.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(c.Stations))
	for i := range c.Stations {
		s := &c.Stations[i]
		if _, dup := seen[s.Key]; dup {
			return fmt.Errorf("duplicate station key %q", s.Key)
		}
		seen[s.Key] = struct{}{}

		if err := s.compileFilters(); err != nil {
			return fmt.Errorf("station %q: %w", s.Key, err)
		}
		s.applyPlaylistDefaults()
	}
	return nil
}

// compileFilters compiles the filter regexes once at startup.
func (s *StationConfig) compileFilters() error {
	if s.Filters == nil {
		return nil
	}
	var err error
	if s.Filters.Blank != "" {
		if s.Filters.blankRe, err = regexp.Compile(s.Filters.Blank); err != nil {
			return fmt.Errorf("invalid blank filter: %w", err)
		}
	}
	if s.Filters.Ignore != "" {
		if s.Filters.ignoreRe, err = regexp.Compile(s.Filters.Ignore); err != nil {
			return fmt.Errorf("invalid ignore filter: %w", err)
		}
	}
	return nil
}

// applyPlaylistDefaults fills the per-playlist defaults: type top,
// a 7 day window and a 100 item limit.
func (s *StationConfig) applyPlaylistDefaults() {
	for i := range s.Playlists {
		p := &s.Playlists[i]
		if p.Type == "" {
			p.Type = "top"
		}
		if p.Days == 0 {
			p.Days = 7
		}
		if p.Limit == 0 {
			p.Limit = 100
		}
	}
}

// StationByKey returns the station config for key, or nil.
func (c *Config) StationByKey(key string) *StationConfig {
	for i := range c.Stations {
		if c.Stations[i].Key == key {
			return &c.Stations[i]
		}
	}
	return nil
}
