// Radiolog - Internet Radio Play Tracking and Playlist Publishing
// Copyright 2026 H. Rowan (hrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hrowan/radiolog

package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// runParser runs p until want observations have been emitted, then
// cancels and returns them. Fails the test if the parser stops with an
// unexpected error first.
func runParser(t *testing.T, p Parser, want int) []SongInfo {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var got []SongInfo
	err := p.ReadSongInfo(ctx, func(ctx context.Context, info SongInfo) error {
		got = append(got, info)
		if len(got) >= want {
			cancel()
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("parser stopped unexpectedly: %v", err)
	}
	if len(got) < want {
		t.Fatalf("expected %d observations, got %d: %+v", want, len(got), got)
	}
	return got
}

func TestHLSRejectsNonPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not a playlist</html>")
	}))
	defer srv.Close()

	p := &HLS{Client: srv.Client(), URL: srv.URL}
	err := p.ReadSongInfo(context.Background(), func(context.Context, SongInfo) error {
		t.Fatal("no observation expected from a rejected stream")
		return nil
	})
	if !errors.Is(err, ErrFormat) {
		t.Errorf("expected ErrFormat, got %v", err)
	}
}

func TestHLSEmitsOncePerSegment(t *testing.T) {
	// The same playlist is served on every poll; the segment must be
	// emitted exactly once.
	playlist := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:1\n" +
		"#EXTINF:10.0,artist=\"A\",title=\"T\"\n" +
		"https://example.com/seg1\n"

	var fetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		fmt.Fprint(w, playlist)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var got []SongInfo
	p := &HLS{Client: srv.Client(), URL: srv.URL}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.ReadSongInfo(ctx, func(ctx context.Context, info SongInfo) error {
			got = append(got, info)
			return nil
		})
	}()

	// Let the parser poll a few times, then stop it.
	for fetches.Load() < 3 && ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if len(got) != 1 {
		t.Fatalf("expected exactly one observation across polls, got %d: %+v", len(got), got)
	}
	if got[0].Artist != "A" || got[0].Title != "T" || got[0].File != "https://example.com/seg1" {
		t.Errorf("unexpected observation: %+v", got[0])
	}
}

func TestHLSEmitsSegmentWithoutURI(t *testing.T) {
	// A segment tag with no URI line yields an observation with an empty
	// File. It must still be emitted; an empty string is not a
	// previously seen segment.
	playlist := "#EXTM3U\n" +
		"#EXT-X-TARGETDURATION:1\n" +
		"#EXTINF:2.0,artist=\"A\",title=\"T\"\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, playlist)
	}))
	defer srv.Close()

	p := &HLS{Client: srv.Client(), URL: srv.URL}
	got := runParser(t, p, 1)
	if got[0].File != "" || got[0].Artist != "A" || got[0].Title != "T" {
		t.Errorf("observation = %+v", got[0])
	}
}

func TestHLSDedupWindowSlides(t *testing.T) {
	// seg0 appears, then 20 other segments push it out of the window,
	// then it appears again and must be re-emitted.
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-TARGETDURATION:1\n")
	writeSegment := func(name string) {
		fmt.Fprintf(&b, "#EXTINF:2.0,title=\"%s\"\n", name)
		fmt.Fprintf(&b, "https://example.com/%s\n", name)
	}
	writeSegment("seg0")
	for i := 1; i <= hlsDedupWindow; i++ {
		writeSegment(fmt.Sprintf("seg%d", i))
	}
	writeSegment("seg0")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, b.String())
	}))
	defer srv.Close()

	p := &HLS{Client: srv.Client(), URL: srv.URL}
	got := runParser(t, p, hlsDedupWindow+2)

	if got[0].File != "https://example.com/seg0" {
		t.Errorf("first emission = %+v", got[0])
	}
	if got[len(got)-1].File != "https://example.com/seg0" {
		t.Errorf("seg0 was not re-emitted after %d other segments: %+v", hlsDedupWindow, got[len(got)-1])
	}
}

func TestHLSDedupWithinWindow(t *testing.T) {
	playlist := "#EXTM3U\n" +
		"#EXTINF:2.0,title=\"dup\"\n" +
		"https://example.com/dup\n" +
		"#EXTINF:2.0,title=\"dup\"\n" +
		"https://example.com/dup\n" +
		"#EXTINF:2.0,title=\"next\"\n" +
		"https://example.com/next\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, playlist)
	}))
	defer srv.Close()

	p := &HLS{Client: srv.Client(), URL: srv.URL}
	got := runParser(t, p, 2)
	if got[0].File != "https://example.com/dup" || got[1].File != "https://example.com/next" {
		t.Errorf("duplicate segment inside the window was not suppressed: %+v", got)
	}
}

func TestHLSFollowsVariantPlaylist(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=33000,CODECS=\"mp4a.40.5\"\n%s/media.m3u8\n", srv.URL)
	})
	mux.HandleFunc("/media.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:1\n#EXTINF:5.0,artist=\"A\",title=\"Nested\"\nhttps://example.com/nested1\n")
	})

	p := &HLS{Client: srv.Client(), URL: srv.URL + "/master.m3u8"}
	got := runParser(t, p, 1)
	if got[0].Title != "Nested" || got[0].Artist != "A" {
		t.Errorf("variant playlist observation = %+v", got[0])
	}
}

func TestParseInf(t *testing.T) {
	tests := []struct {
		name         string
		tagLine      string
		wantDuration float64
		wantArtist   string
		wantTitle    string
	}{
		{
			name:         "plain attributes",
			tagLine:      `10.0,artist="A",title="T"`,
			wantDuration: 10.0,
			wantArtist:   "A",
			wantTitle:    "T",
		},
		{
			name:         "comma inside quoted value",
			tagLine:      `7.5,artist="Earth, Wind & Fire",title="September"`,
			wantDuration: 7.5,
			wantArtist:   "Earth, Wind & Fire",
			wantTitle:    "September",
		},
		{
			name:         "escaped quote inside value",
			tagLine:      `3,title="He said \"hi\""`,
			wantDuration: 3,
			wantTitle:    `He said "hi"`,
		},
		{
			name:         "duration only",
			tagLine:      `12`,
			wantDuration: 12,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, duration, err := parseInf(tt.tagLine, "https://example.com/seg")
			if err != nil {
				t.Fatalf("parseInf failed: %v", err)
			}
			if duration != tt.wantDuration {
				t.Errorf("duration = %v, want %v", duration, tt.wantDuration)
			}
			if info.Artist != tt.wantArtist || info.Title != tt.wantTitle {
				t.Errorf("info = %+v, want artist %q title %q", info, tt.wantArtist, tt.wantTitle)
			}
			if info.File != "https://example.com/seg" {
				t.Errorf("file = %q", info.File)
			}
		})
	}
}

func TestParseInfRejectsBadDuration(t *testing.T) {
	if _, _, err := parseInf(`abc,title="T"`, "u"); err == nil {
		t.Error("expected error for non-numeric duration")
	}
}
