// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/models"
)

var testDBSemaphore = make(chan struct{}, 1)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "1GB"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func setupServer(t *testing.T) (*database.DB, *httptest.Server) {
	t.Helper()
	db := setupTestDB(t)
	s := &Server{DB: db}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return db, srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: bad json: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	_, srv := setupServer(t)
	var body map[string]string
	if status := get(t, srv, "/api/health", &body); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestStations(t *testing.T) {
	db, srv := setupServer(t)
	ctx := context.Background()
	if _, err := db.UpsertStation(ctx, "bfm", "95bFM", "https://example.com/bfm"); err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}
	if _, err := db.UpsertStation(ctx, "george", "George FM", "https://example.com/george"); err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}

	var stations []models.Station
	if status := get(t, srv, "/api/stations", &stations); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(stations) != 2 || stations[0].Key != "bfm" || stations[1].Key != "george" {
		t.Errorf("stations = %+v", stations)
	}

	var station models.Station
	if status := get(t, srv, "/api/stations/george", &station); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if station.Name != "George FM" {
		t.Errorf("station = %+v", station)
	}

	if status := get(t, srv, "/api/stations/nope", nil); status != http.StatusNotFound {
		t.Errorf("unknown station status = %d, want 404", status)
	}
}

func TestLastPlayed(t *testing.T) {
	db, srv := setupServer(t)
	ctx := context.Background()
	station, err := db.UpsertStation(ctx, "bfm", "95bFM", "https://example.com/bfm")
	if err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}

	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		song := &models.Song{
			Key: int64(i + 1), Artist: "artist", Title: "title" + string(rune('a'+i)),
			SpotifyURI: "spotify:track:" + string(rune('a'+i)),
		}
		if err := db.InsertSong(ctx, song); err != nil {
			t.Fatalf("InsertSong failed: %v", err)
		}
		p := &models.Pending{Station: station.ID, Artist: "artist", Title: song.Title, SeenAt: now}
		if err := db.InsertPending(ctx, p); err != nil {
			t.Fatalf("InsertPending failed: %v", err)
		}
		at := now.Add(-time.Duration(i) * time.Minute)
		if err := db.Resolve(ctx, p.ID, &models.Play{Station: station.ID, Song: song.ID, At: at}); err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
	}

	var plays []models.TopSong
	if status := get(t, srv, "/api/stations/bfm/last-played", &plays); status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(plays) != 10 {
		t.Fatalf("rows = %d, want capped at 10", len(plays))
	}
	for i := 1; i < len(plays); i++ {
		if plays[i].LastPlayed.After(plays[i-1].LastPlayed) {
			t.Fatalf("rows not newest-first at %d: %+v", i, plays)
		}
	}
}
