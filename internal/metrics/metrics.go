// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package metrics provides Prometheus instrumentation for the monitor
// pipeline, the Spotify catalog client, and the admin API. Metrics are
// exposed at /metrics on the admin server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream Observation Metrics
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_observations_total",
			Help: "Total number of song observations read from station streams",
		},
		[]string{"station"},
	)

	StreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Total number of stream reader failures (each triggers a restart)",
		},
		[]string{"station"},
	)

	// Pending Resolution Metrics
	PendingResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_resolved_total",
			Help: "Total number of pending observations resolved",
		},
		[]string{"outcome"}, // "play", "filtered", "miss"
	)

	PendingQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_queue_depth",
			Help: "Current number of unresolved pending observations",
		},
	)

	// Spotify Catalog Metrics
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotify_requests_total",
			Help: "Total number of Spotify Web API calls",
		},
		[]string{"operation", "outcome"}, // outcome: "ok", "error", "open_circuit"
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotify_request_duration_seconds",
			Help:    "Spotify Web API call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	// Playlist Reconciliation Metrics
	PlaylistUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playlist_updates_total",
			Help: "Total number of playlist reconciliations",
		},
		[]string{"station", "outcome"}, // outcome: "ok", "error"
	)

	PlaylistTracks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playlist_tracks",
			Help: "Number of tracks pushed in the most recent reconciliation",
		},
		[]string{"station"},
	)

	// Admin API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Admin API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)
)
