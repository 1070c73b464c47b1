// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package monitor contains the two long-running ingest services: one
// StationMonitor per configured station, turning stream observations
// into pending rows, and a single PendingWorker resolving those rows
// against the song catalog.
package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/metrics"
	"github.com/hrowan/radiolog/internal/models"
	"github.com/hrowan/radiolog/internal/stream"
)

// StationMonitor follows one station's stream and records each change
// of the currently playing song as a pending observation. It runs as a
// service under the supervision tree; a stream failure surfaces as an
// error and restarts only this station.
type StationMonitor struct {
	DB         *database.DB
	Dispatcher *stream.Dispatcher
	Station    config.StationConfig
}

// String names the service in supervisor logs.
func (m *StationMonitor) String() string {
	return "monitor-" + m.Station.Key
}

// Serve reconciles the station row from config, then consumes the
// stream until cancellation. Observations missing either artist or
// title are skipped, and consecutive repeats of the same song collapse
// into one pending row.
func (m *StationMonitor) Serve(ctx context.Context) error {
	station, err := m.DB.UpsertStation(ctx, m.Station.Key, m.Station.Name, m.Station.URL)
	if err != nil {
		return err
	}

	log := logging.With().Str("station", m.Station.Key).Logger()
	log.Info().Str("url", m.Station.URL).Msg("monitoring station")

	var artist, title string
	err = m.Dispatcher.ReadSongInfo(ctx, m.Station.URL, func(ctx context.Context, info stream.SongInfo) error {
		if info.Artist == "" || info.Title == "" {
			return nil
		}
		if info.Artist == artist && info.Title == title {
			return nil
		}
		artist, title = info.Artist, info.Title

		p := &models.Pending{
			Station: station.ID,
			Artist:  artist,
			Title:   title,
			SeenAt:  time.Now(),
		}
		if err := m.DB.InsertPending(ctx, p); err != nil {
			return err
		}
		metrics.ObservationsTotal.WithLabelValues(m.Station.Key).Inc()
		log.Info().Str("artist", artist).Str("title", title).Msg("observed song")
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		metrics.StreamErrors.WithLabelValues(m.Station.Key).Inc()
		log.Error().Err(err).Msg("stream reader stopped")
		if errors.Is(err, stream.ErrFormat) {
			// No parser understands this station; restarting cannot fix
			// a misconfigured URL.
			return errors.Join(err, suture.ErrDoNotRestart)
		}
	}
	return err
}
