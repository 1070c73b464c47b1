// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package api serves the read-only admin HTTP API: station inventory,
// recent plays, health and Prometheus metrics. It never writes to the
// database.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/metrics"
)

// lastPlayedLimit caps the rows returned by the last-played endpoint.
const lastPlayedLimit = 10

// Server is the admin API service.
type Server struct {
	DB  *database.DB
	Cfg config.AdminConfig
}

// String names the service in supervisor logs.
func (s *Server) String() string {
	return "admin-api"
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))
	r.Use(instrument)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/stations", s.handleStations)
	r.Get("/api/stations/{key}", s.handleStation)
	r.Get("/api/stations/{key}/last-played", s.handleLastPlayed)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}

// Serve runs the HTTP server until cancellation, then shuts it down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.Cfg.Host, strconv.Itoa(s.Cfg.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("admin api listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("admin api server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// instrument records request counts and latency per route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.APIRequestsTotal.
			WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.
			WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.DB.ListStations(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("failed to list stations")
		writeError(w, http.StatusInternalServerError, "failed to list stations")
		return
	}
	writeJSON(w, http.StatusOK, stations)
}

func (s *Server) handleStation(w http.ResponseWriter, r *http.Request) {
	station, err := s.DB.GetStationByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown station")
			return
		}
		logging.Error().Err(err).Msg("failed to load station")
		writeError(w, http.StatusInternalServerError, "failed to load station")
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (s *Server) handleLastPlayed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	station, err := s.DB.GetStationByKey(ctx, chi.URLParam(r, "key"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown station")
			return
		}
		logging.Error().Err(err).Msg("failed to load station")
		writeError(w, http.StatusInternalServerError, "failed to load station")
		return
	}

	plays, err := s.DB.LastPlayed(ctx, station.ID, lastPlayedLimit)
	if err != nil {
		logging.Error().Err(err).Msg("failed to load last played")
		writeError(w, http.StatusInternalServerError, "failed to load last played")
		return
	}
	writeJSON(w, http.StatusOK, plays)
}
