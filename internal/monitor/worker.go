// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package monitor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/fingerprint"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/metrics"
	"github.com/hrowan/radiolog/internal/models"
	"github.com/hrowan/radiolog/internal/spotify"
)

// emptyQueueSleep is how long the worker idles when there is nothing
// claimable.
const emptyQueueSleep = 180 * time.Second

// PendingWorker drains the pending queue: it claims the oldest
// claimable row under the lease protocol, canonicalises it against the
// catalog, and commits the outcome. Catalog failures abandon the row to
// its lease, so it is retried once the lease expires.
type PendingWorker struct {
	DB       *database.DB
	Catalog  spotify.Catalog
	Stations []config.StationConfig

	// EmptySleep overrides the idle interval. Used by tests.
	EmptySleep time.Duration
}

// String names the service in supervisor logs.
func (w *PendingWorker) String() string {
	return "pending-worker"
}

// Serve processes pending rows until cancellation.
func (w *PendingWorker) Serve(ctx context.Context) error {
	idle := w.EmptySleep
	if idle <= 0 {
		idle = emptyQueueSleep
	}

	filters := make(map[string]*config.FilterConfig, len(w.Stations))
	for i := range w.Stations {
		filters[w.Stations[i].Key] = w.Stations[i].Filters
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if depth, err := w.DB.PendingCount(ctx); err == nil {
			metrics.PendingQueueDepth.Set(float64(depth))
		}

		next, err := w.DB.NextPending(ctx, time.Now())
		if errors.Is(err, database.ErrNotFound) {
			if err := sleep(ctx, idle); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		claimed, err := w.DB.ClaimPending(ctx, next, time.Now())
		if err != nil {
			return err
		}
		if !claimed {
			// Another worker won the row; move straight on.
			continue
		}

		if err := w.resolve(ctx, next, filters); err != nil {
			if ctx.Err() != nil {
				return err
			}
			// The row keeps its lease stamp and becomes claimable again
			// after expiry; the worker moves on.
			logging.Error().Err(err).
				Int64("pending", next.ID).
				Str("artist", next.Artist).
				Str("title", next.Title).
				Msg("failed to resolve observation")
			continue
		}
	}
}

// resolve canonicalises one claimed observation and commits it.
func (w *PendingWorker) resolve(ctx context.Context, p *models.Pending, filters map[string]*config.FilterConfig) error {
	station, err := w.DB.GetStation(ctx, p.Station)
	if err != nil {
		return err
	}
	log := logging.With().
		Str("station", station.Key).
		Str("artist", p.Artist).
		Str("title", p.Title).
		Logger()

	var blank, ignore *regexp.Regexp
	if f := filters[station.Key]; f != nil {
		blank, ignore = f.BlankRE(), f.IgnoreRE()
	}

	normalised := fingerprint.Normalise(p.Artist, p.Title, nil)
	if ignore != nil && ignore.MatchString(normalised) {
		log.Info().Msg("ignoring observation")
		metrics.PendingResolved.WithLabelValues("filtered").Inc()
		return w.DB.Resolve(ctx, p.ID, nil)
	}
	if blank != nil {
		normalised = blank.ReplaceAllString(normalised, "")
	}
	key := fingerprint.KeyOf(normalised)

	song, err := w.DB.SongByKey(ctx, key)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}

	// Unknown fingerprint: ask the catalog, preferring an existing song
	// with the same URI so near-miss spellings converge on one identity.
	if song == nil {
		hit, err := w.Catalog.SearchTrack(ctx, normalised)
		if err != nil {
			return fmt.Errorf("catalog search for %q failed: %w", normalised, err)
		}
		if hit != nil {
			song, err = w.DB.SongByURI(ctx, hit.URI)
			if errors.Is(err, database.ErrNotFound) {
				song = &models.Song{Key: key, Artist: hit.Artist, Title: hit.Title, SpotifyURI: hit.URI}
				if err := w.DB.InsertSong(ctx, song); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
		}
	}

	var play *models.Play
	if song != nil {
		play = &models.Play{Station: p.Station, Song: song.ID, At: p.SeenAt}
		metrics.PendingResolved.WithLabelValues("play").Inc()
		log.Debug().Int64("song", song.ID).Msg("recording play")
	} else {
		metrics.PendingResolved.WithLabelValues("miss").Inc()
		log.Warn().Str("query", normalised).Msg("song not found in catalog")
	}
	return w.DB.Resolve(ctx, p.ID, play)
}

// sleep waits for d unless the context is cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
