// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

// Package playlist reconciles the managed remote playlists from the
// recorded play history. Reconciliation is idempotent: it computes the
// desired track list and replaces the playlist contents wholesale.
package playlist

import (
	"context"
	"fmt"
	"time"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/logging"
	"github.com/hrowan/radiolog/internal/metrics"
	"github.com/hrowan/radiolog/internal/models"
	"github.com/hrowan/radiolog/internal/spotify"
)

// maxPlaylistItems caps a single replace request.
const maxPlaylistItems = 100

// Naming templates for the top playlist.
const (
	topNameFormat        = "%s most played"
	topDescriptionFormat = "The most played songs on %s for the last %d days. Not official. Might have mistakes."
)

// Reconciler pushes play-history aggregates to the catalog.
type Reconciler struct {
	DB      *database.DB
	Catalog spotify.Catalog
}

// UpdateStation reconciles every configured playlist of a station.
func (r *Reconciler) UpdateStation(ctx context.Context, stationCfg *config.StationConfig) error {
	station, err := r.DB.GetStationByKey(ctx, stationCfg.Key)
	if err != nil {
		return fmt.Errorf("station %q is not known yet: %w", stationCfg.Key, err)
	}

	for i := range stationCfg.Playlists {
		pc := &stationCfg.Playlists[i]
		if models.PlaylistType(pc.Type) != models.PlaylistTypeTop {
			continue
		}
		if err := r.UpdateTop(ctx, station, pc); err != nil {
			metrics.PlaylistUpdates.WithLabelValues(station.Key, "error").Inc()
			return err
		}
		metrics.PlaylistUpdates.WithLabelValues(station.Key, "ok").Inc()
	}
	return nil
}

// UpdateTop rebuilds the station's most-played playlist over the
// configured window.
func (r *Reconciler) UpdateTop(ctx context.Context, station *models.Station, pc *config.PlaylistConfig) error {
	log := logging.With().Str("station", station.Key).Logger()
	log.Info().Int("days", pc.Days).Msg("updating top playlist")

	name := fmt.Sprintf(topNameFormat, station.Name)
	description := fmt.Sprintf(topDescriptionFormat, station.Name, pc.Days)

	uri, err := r.playlistURI(ctx, station, name, description)
	if err != nil {
		return err
	}

	limit := pc.Limit
	if limit <= 0 || limit > maxPlaylistItems {
		limit = maxPlaylistItems
	}
	since := time.Now().AddDate(0, 0, -pc.Days)
	top, err := r.DB.TopSongs(ctx, station.ID, since, limit)
	if err != nil {
		return err
	}

	uris := make([]string, 0, len(top))
	for _, ts := range top {
		if ts.Song.SpotifyURI == "" {
			continue
		}
		log.Debug().
			Str("artist", ts.Song.Artist).
			Str("title", ts.Song.Title).
			Int64("plays", ts.PlayCount).
			Msg("playlist entry")
		uris = append(uris, ts.Song.SpotifyURI)
	}

	if err := r.Catalog.ReplacePlaylistItems(ctx, uri, uris); err != nil {
		return fmt.Errorf("failed to push playlist %q: %w", name, err)
	}
	metrics.PlaylistTracks.WithLabelValues(station.Key).Set(float64(len(uris)))
	log.Info().Int("tracks", len(uris)).Msg("top playlist updated")
	return nil
}

// playlistURI returns the remote URI for the station's top playlist,
// creating the remote playlist on first use. Once stored the URI never
// changes.
func (r *Reconciler) playlistURI(ctx context.Context, station *models.Station, name, description string) (string, error) {
	pl, err := r.DB.EnsurePlaylist(ctx, station.ID, models.PlaylistTypeTop)
	if err != nil {
		return "", err
	}
	return r.DB.ClaimPlaylistURI(ctx, pl.ID, func(ctx context.Context) (string, error) {
		userID, err := r.Catalog.CurrentUserID(ctx)
		if err != nil {
			return "", err
		}
		return r.Catalog.CreatePlaylist(ctx, userID, name, description)
	})
}
