// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/radiolog/config.yaml",
	"/etc/radiolog/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using koanf v2 with layered sources
// (highest priority wins): environment variables > config file > defaults.
// The returned config is validated and its filters are compiled.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// RDB_SPOTIFY_CLIENT_ID -> spotify.client_id and friends.
	if err := k.Load(env.Provider("RDB_", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransformFunc maps RDB_-prefixed environment variables to koanf
// config paths. Unknown variables are dropped so stray RDB_* values
// cannot pollute the config.
//
// Examples:
//   - RDB_DATABASE_PATH        -> database.path
//   - RDB_SPOTIFY_CLIENT_ID    -> spotify.client_id
//   - RDB_SPOTIFY_AUTH_SEED    -> spotify.auth_seed
//   - RDB_LOG_LEVEL            -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Database
		"rdb_database_path":       "database.path",
		"rdb_database_max_memory": "database.max_memory",
		"rdb_database_threads":    "database.threads",
		// Legacy connection form maps onto the same path setting.
		"rdb_database_connection_string": "database.path",

		// Spotify
		"rdb_spotify_client_id":     "spotify.client_id",
		"rdb_spotify_client_secret": "spotify.client_secret",
		"rdb_spotify_auth_seed":     "spotify.auth_seed",
		"rdb_spotify_redirect_url":  "spotify.redirect_url",

		// Admin API
		"rdb_admin_enabled": "admin.enabled",
		"rdb_admin_host":    "admin.host",
		"rdb_admin_port":    "admin.port",

		// Logging
		"rdb_log_level":  "logging.level",
		"rdb_log_format": "logging.format",
		"rdb_log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
