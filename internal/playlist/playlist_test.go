// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package playlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hrowan/radiolog/internal/config"
	"github.com/hrowan/radiolog/internal/database"
	"github.com/hrowan/radiolog/internal/models"
	"github.com/hrowan/radiolog/internal/spotify"
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

// fakeCatalog records playlist calls.
type fakeCatalog struct {
	mu       sync.Mutex
	created  []string // names
	replaced map[string][][]string
	failPush error
}

func (f *fakeCatalog) SearchTrack(ctx context.Context, query string) (*spotify.Track, error) {
	return nil, nil
}

func (f *fakeCatalog) CurrentUserID(ctx context.Context) (string, error) {
	return "fake-user", nil
}

func (f *fakeCatalog) CreatePlaylist(ctx context.Context, userID, name, description string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, name)
	return fmt.Sprintf("spotify:playlist:pl%d", len(f.created)), nil
}

func (f *fakeCatalog) ReplacePlaylistItems(ctx context.Context, playlistURI string, trackURIs []string) error {
	if f.failPush != nil {
		return f.failPush
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaced == nil {
		f.replaced = make(map[string][][]string)
	}
	f.replaced[playlistURI] = append(f.replaced[playlistURI], append([]string(nil), trackURIs...))
	return nil
}

func insertPlay(t *testing.T, db *database.DB, stationID, songID int64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	p := &models.Pending{Station: stationID, Artist: "x", Title: "y", SeenAt: at}
	if err := db.InsertPending(ctx, p); err != nil {
		t.Fatalf("InsertPending failed: %v", err)
	}
	if err := db.Resolve(ctx, p.ID, &models.Play{Station: stationID, Song: songID, At: at}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
}

func insertSong(t *testing.T, db *database.DB, key int64, uri string) *models.Song {
	t.Helper()
	s := &models.Song{Key: key, Artist: fmt.Sprintf("artist%d", key), Title: fmt.Sprintf("title%d", key), SpotifyURI: uri}
	if err := db.InsertSong(context.Background(), s); err != nil {
		t.Fatalf("InsertSong failed: %v", err)
	}
	return s
}

func TestUpdateTopCreatesRemotePlaylistOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	station, err := db.UpsertStation(ctx, "george", "George FM", "https://example.com")
	if err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}

	catalog := &fakeCatalog{}
	r := &Reconciler{DB: db, Catalog: catalog}
	pc := &config.PlaylistConfig{Type: "top", Days: 7, Limit: 100}

	for i := 0; i < 2; i++ {
		if err := r.UpdateTop(ctx, station, pc); err != nil {
			t.Fatalf("UpdateTop run %d failed: %v", i, err)
		}
	}

	if len(catalog.created) != 1 {
		t.Fatalf("remote playlist created %d times, want once", len(catalog.created))
	}
	if catalog.created[0] != "George FM most played" {
		t.Errorf("playlist name = %q", catalog.created[0])
	}
	if got := len(catalog.replaced["spotify:playlist:pl1"]); got != 2 {
		t.Errorf("playlist replaced %d times, want 2", got)
	}

	pl, err := db.EnsurePlaylist(ctx, station.ID, models.PlaylistTypeTop)
	if err != nil {
		t.Fatalf("EnsurePlaylist failed: %v", err)
	}
	if pl.SpotifyURI != "spotify:playlist:pl1" {
		t.Errorf("stored uri = %q", pl.SpotifyURI)
	}
}

func TestUpdateTopOrdersCapsAndWindows(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	station, err := db.UpsertStation(ctx, "george", "George FM", "https://example.com")
	if err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}

	now := time.Now().UTC()
	heavy := insertSong(t, db, 1, "spotify:track:heavy")
	light := insertSong(t, db, 2, "spotify:track:light")
	tail := insertSong(t, db, 3, "spotify:track:tail")
	stale := insertSong(t, db, 4, "spotify:track:stale")

	for i := 0; i < 3; i++ {
		insertPlay(t, db, station.ID, heavy.ID, now.Add(-time.Duration(i+1)*time.Hour))
	}
	for i := 0; i < 2; i++ {
		insertPlay(t, db, station.ID, light.ID, now.Add(-time.Duration(i+2)*time.Hour))
	}
	insertPlay(t, db, station.ID, tail.ID, now.Add(-time.Hour))
	// Outside the 7-day window entirely.
	for i := 0; i < 10; i++ {
		insertPlay(t, db, station.ID, stale.ID, now.AddDate(0, 0, -8).Add(-time.Duration(i)*time.Hour))
	}

	catalog := &fakeCatalog{}
	r := &Reconciler{DB: db, Catalog: catalog}
	if err := r.UpdateTop(ctx, station, &config.PlaylistConfig{Type: "top", Days: 7, Limit: 2}); err != nil {
		t.Fatalf("UpdateTop failed: %v", err)
	}

	pushes := catalog.replaced["spotify:playlist:pl1"]
	if len(pushes) != 1 {
		t.Fatalf("pushes = %d", len(pushes))
	}
	want := []string{"spotify:track:heavy", "spotify:track:light"}
	got := pushes[0]
	if len(got) != len(want) {
		t.Fatalf("pushed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pushed[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUpdateTopPushFailureKeepsURI(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	station, err := db.UpsertStation(ctx, "george", "George FM", "https://example.com")
	if err != nil {
		t.Fatalf("UpsertStation failed: %v", err)
	}

	catalog := &fakeCatalog{failPush: errors.New("upstream down")}
	r := &Reconciler{DB: db, Catalog: catalog}
	if err := r.UpdateTop(ctx, station, &config.PlaylistConfig{Type: "top", Days: 7, Limit: 100}); err == nil {
		t.Fatal("UpdateTop must surface push failures")
	}

	// The remote playlist was created before the push failed; its URI
	// must be stored so the retry does not create a duplicate.
	pl, err := db.EnsurePlaylist(ctx, station.ID, models.PlaylistTypeTop)
	if err != nil {
		t.Fatalf("EnsurePlaylist failed: %v", err)
	}
	if pl.SpotifyURI == "" {
		t.Fatal("playlist uri was not stored")
	}

	catalog.failPush = nil
	if err := r.UpdateTop(ctx, station, &config.PlaylistConfig{Type: "top", Days: 7, Limit: 100}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(catalog.created) != 1 {
		t.Errorf("remote playlist created %d times across retry, want once", len(catalog.created))
	}
}

func TestUpdateStationRequiresKnownStation(t *testing.T) {
	db := setupTestDB(t)
	r := &Reconciler{DB: db, Catalog: &fakeCatalog{}}
	cfg := config.StationConfig{Key: "ghost", Name: "Ghost", URL: "https://example.com",
		Playlists: []config.PlaylistConfig{{Type: "top", Days: 7, Limit: 100}}}
	if err := r.UpdateStation(context.Background(), &cfg); err == nil {
		t.Fatal("expected error for a station with no database row")
	}
}
