// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package main is the radiolog entry point.
//
// Radiolog follows internet radio stations, records what they play, and
// publishes "most played" playlists to Spotify. One binary carries the
// operational subcommands:
//
//	radiolog monitor                     follow all configured stations and
//	                                     resolve observations (long running)
//	radiolog update-playlists [STATION]  reconcile the managed playlists for
//	                                     one station, or all stations
//	radiolog authorise                   run the interactive Spotify OAuth
//	                                     flow and print the auth seed
//	radiolog serve-admin                 serve only the read-only admin API
//
// Configuration is loaded via koanf with layered sources (highest
// priority wins): RDB_* environment variables > config.yaml > defaults.
// CONFIG_PATH overrides the config file location.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hrowan/radiolog/internal/api"
	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/monitor"
	"github.com/hrowan/radiolog/internal/playlist"
	"github.com/hrowan/radiolog/internal/spotify"
	"github.com/hrowan/radiolog/internal/stream"
	"github.com/hrowan/radiolog/internal/supervisor"
	"github.com/hrowan/radiolog/internal/tokencache"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "monitor":
		err = runMonitor(ctx, cfg)
	case "update-playlists":
		var stationKey string
		if len(os.Args) > 2 {
			stationKey = os.Args[2]
		}
		err = runUpdatePlaylists(ctx, cfg, stationKey)
	case "authorise", "authorize":
		err = runAuthorise(ctx, cfg)
	case "serve-admin":
		err = runServeAdmin(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Str("command", os.Args[1]).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: radiolog <monitor|update-playlists [STATION]|authorise|serve-admin>")
}

// openDB opens the configured database and arranges for it to close
// when the command returns.
func openDB(cfg *config.Config) (*database.DB, func(), error) {
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close database")
		}
	}, nil
}

// runMonitor is the long-running mode: one stream monitor per station,
// the pending worker, the token writer, and optionally the admin API,
// all under the supervision tree.
func runMonitor(ctx context.Context, cfg *config.Config) error {
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	cache, err := tokencache.Load(ctx, db, cfg.Spotify.AuthSeed)
	if err != nil {
		if errors.Is(err, tokencache.ErrNoToken) {
			return errors.New("no catalog token: run `radiolog authorise` and set spotify.auth_seed")
		}
		return err
	}
	catalog, err := spotify.NewClient(ctx, &cfg.Spotify, cache)
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	dispatcher := &stream.Dispatcher{}
	for _, station := range cfg.Stations {
		tree.AddIngestService(&monitor.StationMonitor{
			DB:         db,
			Dispatcher: dispatcher,
			Station:    station,
		})
	}
	tree.AddIngestService(&monitor.PendingWorker{
		DB:       db,
		Catalog:  catalog,
		Stations: cfg.Stations,
	})
	tree.AddIngestService(&tokencache.Writer{DB: db, Cache: cache})

	if cfg.Admin.Enabled {
		tree.AddAPIService(&api.Server{DB: db, Cfg: cfg.Admin})
	}

	err = tree.Serve(ctx)
	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}
	return err
}

// runUpdatePlaylists reconciles the managed playlists for one station,
// or all configured stations when no key is given. The token writer
// runs alongside so a token refresh during the update is persisted.
func runUpdatePlaylists(ctx context.Context, cfg *config.Config, stationKey string) error {
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	stations := cfg.Stations
	if stationKey != "" {
		sc := cfg.StationByKey(stationKey)
		if sc == nil {
			return fmt.Errorf("%q is not a configured station", stationKey)
		}
		stations = []config.StationConfig{*sc}
	}

	cache, err := tokencache.Load(ctx, db, cfg.Spotify.AuthSeed)
	if err != nil {
		if errors.Is(err, tokencache.ErrNoToken) {
			return errors.New("no catalog token: run `radiolog authorise` and set spotify.auth_seed")
		}
		return err
	}
	catalog, err := spotify.NewClient(ctx, &cfg.Spotify, cache)
	if err != nil {
		return err
	}

	writerCtx, stopWriter := context.WithCancel(ctx)
	writer := &tokencache.Writer{DB: db, Cache: cache}
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := writer.Serve(writerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("token writer failed")
		}
	}()
	defer func() {
		stopWriter()
		<-writerDone
	}()

	r := &playlist.Reconciler{DB: db, Catalog: catalog}
	for i := range stations {
		if err := r.UpdateStation(ctx, &stations[i]); err != nil {
			return err
		}
	}
	return nil
}

// runAuthorise performs the interactive OAuth flow. Instructions go to
// stderr; the resulting base64 seed is the only thing on stdout so it
// can be piped or pasted into spotify.auth_seed.
func runAuthorise(ctx context.Context, cfg *config.Config) error {
	flow, err := spotify.NewAuthFlow(&cfg.Spotify)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Open this URL in your browser, authorise, and return here:")
	fmt.Fprintln(os.Stderr, flow.URL())

	tok, err := flow.Wait(ctx)
	if err != nil {
		return err
	}
	seed, err := tokencache.EncodeSeed(tok)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "Set this as the spotify.auth_seed (env: RDB_SPOTIFY_AUTH_SEED) config value:")
	fmt.Println(seed)
	return nil
}

// runServeAdmin serves only the read-only admin API, regardless of the
// admin.enabled flag.
func runServeAdmin(ctx context.Context, cfg *config.Config) error {
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	srv := &api.Server{DB: db, Cfg: cfg.Admin}
	return srv.Serve(ctx)
}
