package matching

import (
	"testing"

	"github.com/desertthunder/m3usync/internal/models"
)

func yesterday() *models.LocalTrack {
	return &models.LocalTrack{Title: "Yesterday", Artist: "The Beatles", Album: "Help!", Length: 125, Year: 1965}
}

func TestStrongMatch(t *testing.T) {
	t.Run("accepts on duration", func(t *testing.T) {
		candidates := []models.RemoteCandidate{{
			Title: "yesterday", Artists: []string{"The Beatles"}, AlbumName: "Help!",
			DurationMS: 126000, AlbumReleaseDate: "1965-08-06", URI: "spotify:track:y",
		}}

		got := StrongMatch(yesterday(), candidates)
		if got == nil || got.URI != "spotify:track:y" {
			t.Fatalf("expected match, got %v", got)
		}
	})

	t.Run("rejects karaoke album", func(t *testing.T) {
		candidates := []models.RemoteCandidate{{
			Title: "Yesterday (Karaoke)", Artists: []string{"Karaoke Band"}, AlbumName: "Karaoke Hits",
			DurationMS: 125000, AlbumReleaseDate: "1965-01-01", URI: "spotify:track:k",
		}}

		if got := StrongMatch(yesterday(), candidates); got != nil {
			t.Errorf("expected no strong match, got %v", got.URI)
		}
		title, artist, _ := CleanTrack("Yesterday", "The Beatles", "Help!")
		if got := WeakMatch(yesterday(), candidates, title, artist); got != nil {
			t.Errorf("expected no weak match, got %v", got.URI)
		}
	})

	t.Run("first qualifying candidate wins", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Other", AlbumName: "Elsewhere", DurationMS: 400000, AlbumReleaseDate: "2001", URI: "none"},
			{Title: "Yesterday", AlbumName: "Elsewhere", DurationMS: 130000, AlbumReleaseDate: "2001", URI: "time-only"},
			{Title: "Yesterday", AlbumName: "Help!", DurationMS: 125000, AlbumReleaseDate: "1965", URI: "all-three"},
		}

		got := StrongMatch(yesterday(), candidates)
		if got == nil || got.URI != "time-only" {
			t.Errorf("expected first qualifying candidate, got %v", got)
		}
	})

	t.Run("album substring is case insensitive", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{AlbumName: "HELP! (Remastered)", DurationMS: 300000, URI: "album"},
		}
		if got := StrongMatch(yesterday(), candidates); got == nil || got.URI != "album" {
			t.Errorf("expected album match, got %v", got)
		}
	})

	t.Run("year alone is enough", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{AlbumName: "Greatest", DurationMS: 300000, AlbumReleaseDate: "1965-12-03", URI: "year"},
		}
		if got := StrongMatch(yesterday(), candidates); got == nil || got.URI != "year" {
			t.Errorf("expected year match, got %v", got)
		}
	})

	t.Run("unparseable year is not a match", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{AlbumName: "Greatest", DurationMS: 300000, AlbumReleaseDate: "n/a", URI: "bad-date"},
		}
		if got := StrongMatch(yesterday(), candidates); got != nil {
			t.Errorf("expected no match, got %v", got.URI)
		}
	})

	t.Run("empty local album matches any album", func(t *testing.T) {
		local := yesterday()
		local.Album = ""
		local.Year = 0
		candidates := []models.RemoteCandidate{{AlbumName: "Help!", DurationMS: 400000, AlbumReleaseDate: "2001", URI: "x"}}
		if got := StrongMatch(local, candidates); got == nil || got.URI != "x" {
			t.Errorf("expected album match, got %v", got)
		}
		if sig := Evaluate(local, candidates[0]); !sig.Album || sig.Time || sig.Year {
			t.Errorf("expected album signal only, got %+v", sig)
		}
	})

	t.Run("empty local album still rejects karaoke", func(t *testing.T) {
		local := yesterday()
		local.Album = ""
		candidates := []models.RemoteCandidate{{AlbumName: "Karaoke Hits", DurationMS: 400000, URI: "k"}}
		if got := StrongMatch(local, candidates); got != nil {
			t.Errorf("expected karaoke exclusion, got %v", got.URI)
		}
	})

	t.Run("karaoke artist excluded", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Artists: []string{"The Beatles", "Backing Track Heroes"}, AlbumName: "Help!", DurationMS: 125000, URI: "backing"},
		}
		if got := StrongMatch(yesterday(), candidates); got != nil {
			t.Errorf("expected karaoke artist exclusion, got %v", got.URI)
		}
	})

	t.Run("empty candidates", func(t *testing.T) {
		if got := StrongMatch(yesterday(), nil); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestWeakMatch(t *testing.T) {
	title, artist := "yesterday", "beatles"

	t.Run("smallest duration delta wins", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Yesterday", Artists: []string{"Someone"}, DurationMS: 175000, URI: "fifty"},
			{Title: "Yesterday", Artists: []string{"Someone"}, DurationMS: 130000, URI: "five"},
		}

		got := WeakMatch(yesterday(), candidates, title, artist)
		if got == nil || got.URI != "five" {
			t.Errorf("expected five second candidate, got %v", got)
		}
	})

	t.Run("artist match without title match", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Something Else", Artists: []string{"The Beatles"}, DurationMS: 200000, URI: "artist"},
		}
		got := WeakMatch(yesterday(), candidates, title, artist)
		if got == nil || got.URI != "artist" {
			t.Errorf("expected artist match, got %v", got)
		}
	})

	t.Run("neither title nor artist", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Something Else", Artists: []string{"Nobody"}, DurationMS: 125000, URI: "nope"},
		}
		if got := WeakMatch(yesterday(), candidates, title, artist); got != nil {
			t.Errorf("expected no match, got %v", got.URI)
		}
	})

	t.Run("sentinel excludes far durations", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Yesterday", Artists: []string{"The Beatles"}, DurationMS: 900000, URI: "too-long"},
		}
		if got := WeakMatch(yesterday(), candidates, title, artist); got != nil {
			t.Errorf("expected no match past the sentinel, got %v", got.URI)
		}
	})

	t.Run("karaoke album never returned", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Yesterday", Artists: []string{"The Beatles"}, AlbumName: "Karaoke Version Hits", DurationMS: 125000, URI: "karaoke"},
			{Title: "Yesterday", Artists: []string{"The Beatles"}, AlbumName: "Help!", DurationMS: 160000, URI: "real"},
		}
		got := WeakMatch(yesterday(), candidates, title, artist)
		if got == nil || got.URI != "real" {
			t.Errorf("expected real candidate, got %v", got)
		}
	})

	t.Run("artist loop stops on first matching artist", func(t *testing.T) {
		candidates := []models.RemoteCandidate{
			{Title: "Other", Artists: []string{"The Beatles", "Karaoke Crew"}, DurationMS: 125000, URI: "short-circuit"},
		}
		got := WeakMatch(yesterday(), candidates, title, artist)
		if got == nil || got.URI != "short-circuit" {
			t.Errorf("expected the matching first artist to stop the loop, got %v", got)
		}
	})

	t.Run("empty candidates", func(t *testing.T) {
		if got := WeakMatch(yesterday(), nil, title, artist); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})
}

func TestNearest(t *testing.T) {
	candidates := []models.RemoteCandidate{
		{Title: "Yesterday", Artists: []string{"Karaoke Kings"}, AlbumName: "Karaoke Hits", URI: "karaoke"},
		{Title: "Yellow Submarine", Artists: []string{"The Beatles"}, URI: "yellow"},
		{Title: "Yesterday", Artists: []string{"Beatles Tribute"}, URI: "tribute"},
	}

	got, dist := Nearest(yesterday(), candidates)
	if got == nil || got.URI != "tribute" {
		t.Fatalf("expected tribute as nearest, got %v", got)
	}
	if dist <= 0 {
		t.Errorf("expected positive distance, got %d", dist)
	}

	if got, dist := Nearest(yesterday(), nil); got != nil || dist != -1 {
		t.Errorf("expected nil and -1 for no candidates, got %v %d", got, dist)
	}
}
