package tasks

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	th "github.com/desertthunder/m3usync/internal/testing"
)

func candidate(uri, title, artist, album string, ms int, date string) models.RemoteCandidate {
	return models.RemoteCandidate{
		ID:               uri,
		URI:              uri,
		Title:            title,
		Artists:          []string{artist},
		AlbumName:        album,
		DurationMS:       ms,
		AlbumReleaseDate: date,
	}
}

func yesterday() *models.LocalTrack {
	return &models.LocalTrack{
		Title:  "Yesterday",
		Artist: "The Beatles",
		Album:  "Help!",
		Length: 125,
		Year:   1965,
		Path:   "/music/yesterday.mp3",
	}
}

var (
	beatles = candidate("spotify:track:beatles", "Yesterday", "The Beatles", "Help!", 126000, "1965-08-06")
	karaoke = candidate("spotify:track:karaoke", "Yesterday (Karaoke)", "Karaoke Band", "Karaoke Hits", 125000, "1965-01-01")
)

type memoryRecorder struct {
	mu      sync.Mutex
	records []*models.Resolution
	err     error
}

func (m *memoryRecorder) Record(ctx context.Context, res *models.Resolution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, res)
	return nil
}

func newResolver(svc *th.FakeService, rec Recorder) *Resolver {
	return NewResolver(svc, ResolverOpts{Recorder: rec, Logger: shared.NewLogger(&bytes.Buffer{})})
}

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("strong match on the first query", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{beatles}

		track := yesterday()
		outcome, err := newResolver(svc, nil).Resolve(ctx, track)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if outcome != models.OutcomeStrong {
			t.Errorf("expected strong, got %s", outcome)
		}
		if track.URI != models.ResolvedURI(beatles.URI) {
			t.Errorf("unexpected uri %v", track.URI)
		}
		if q := svc.Queries(); !reflect.DeepEqual(q, []string{"yesterday beatles"}) {
			t.Errorf("unexpected queries %v", q)
		}
	})

	t.Run("known tracks are not searched again", func(t *testing.T) {
		svc := th.NewFakeService()
		resolver := newResolver(svc, nil)

		for _, uri := range []models.URIState{models.ResolvedURI("spotify:track:x"), models.UnavailableURI()} {
			track := yesterday()
			track.URI = uri
			outcome, err := resolver.Resolve(ctx, track)
			if err != nil || outcome != models.OutcomeSkipped {
				t.Errorf("expected skipped, got %s (%v)", outcome, err)
			}
			if track.URI != uri {
				t.Errorf("uri changed from %v to %v", uri, track.URI)
			}
		}
		if svc.Calls() != 0 {
			t.Errorf("expected no API calls, got %d", svc.Calls())
		}
	})

	t.Run("resolving twice makes no second request", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{beatles}
		resolver := newResolver(svc, nil)

		track := yesterday()
		resolver.Resolve(ctx, track)
		calls := svc.Calls()
		resolver.Resolve(ctx, track)
		if svc.Calls() != calls {
			t.Errorf("expected %d calls, got %d", calls, svc.Calls())
		}
	})

	t.Run("falls back to title and album", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday help"] = []models.RemoteCandidate{beatles}

		track := yesterday()
		outcome, _ := newResolver(svc, nil).Resolve(ctx, track)
		if outcome != models.OutcomeStrong {
			t.Errorf("expected strong, got %s", outcome)
		}
		if q := svc.Queries(); !reflect.DeepEqual(q, []string{"yesterday beatles", "yesterday help"}) {
			t.Errorf("unexpected queries %v", q)
		}
	})

	t.Run("downloads albums skip the album query", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday"] = []models.RemoteCandidate{beatles}

		track := yesterday()
		track.Album = "Downloads"
		outcome, _ := newResolver(svc, nil).Resolve(ctx, track)
		if outcome != models.OutcomeStrong {
			t.Errorf("expected strong, got %s", outcome)
		}
		if q := svc.Queries(); !reflect.DeepEqual(q, []string{"yesterday beatles", "yesterday"}) {
			t.Errorf("unexpected queries %v", q)
		}
	})

	t.Run("retries strong match on a title only search", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{
			candidate("spotify:track:far", "Yesterday", "The Beatles", "Other", 300000, "2000"),
		}
		svc.Results["yesterday"] = []models.RemoteCandidate{beatles}

		track := yesterday()
		outcome, _ := newResolver(svc, nil).Resolve(ctx, track)
		if outcome != models.OutcomeStrong || track.URI.URI() != beatles.URI {
			t.Errorf("expected strong %s, got %s %v", beatles.URI, outcome, track.URI)
		}
		if q := svc.Queries(); !reflect.DeepEqual(q, []string{"yesterday beatles", "yesterday"}) {
			t.Errorf("unexpected queries %v", q)
		}
	})

	t.Run("weak match picks the closest duration", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{
			candidate("spotify:track:sixty", "Yesterday", "Cover Band", "Covers", 185000, "2010"),
			candidate("spotify:track:twentyfive", "Yesterday", "Cover Band", "Covers", 150000, "2010"),
		}

		track := yesterday()
		outcome, _ := newResolver(svc, nil).Resolve(ctx, track)
		if outcome != models.OutcomeWeak {
			t.Fatalf("expected weak, got %s", outcome)
		}
		if track.URI.URI() != "spotify:track:twentyfive" {
			t.Errorf("expected the 25s delta candidate, got %v", track.URI)
		}
	})

	t.Run("weak match on title only results is kept", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{
			candidate("spotify:track:other", "Something", "Other Band", "X", 300000, "2000"),
		}
		svc.Results["yesterday"] = []models.RemoteCandidate{
			candidate("spotify:track:titleonly", "Yesterday", "Someone", "Y", 165000, "2001"),
		}

		track := yesterday()
		outcome, _ := newResolver(svc, nil).Resolve(ctx, track)
		if outcome != models.OutcomeWeak || track.URI.URI() != "spotify:track:titleonly" {
			t.Errorf("expected weak titleonly, got %s %v", outcome, track.URI)
		}
	})

	t.Run("karaoke versions are never accepted", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{karaoke}
		svc.Results["yesterday"] = []models.RemoteCandidate{karaoke}

		track := yesterday()
		outcome, err := newResolver(svc, nil).Resolve(ctx, track)
		if err != nil {
			t.Fatalf("a miss must not be an error: %v", err)
		}
		if outcome != models.OutcomeUnavailable {
			t.Errorf("expected unavailable, got %s", outcome)
		}
		if track.URI.Known() {
			t.Errorf("Resolve must leave a miss unresolved, got %v", track.URI)
		}
	})

	t.Run("request errors are returned", func(t *testing.T) {
		svc := th.NewFakeService()
		svc.Err = shared.ErrMaxRetries

		outcome, err := newResolver(svc, nil).Resolve(ctx, yesterday())
		if outcome != models.OutcomeFailed || !errors.Is(err, shared.ErrMaxRetries) {
			t.Errorf("expected failed with ErrMaxRetries, got %s %v", outcome, err)
		}
	})

	t.Run("miss suggests the nearest candidate", func(t *testing.T) {
		near := candidate("spotify:track:near", "Tomorrow", "Beetles", "Z", 400000, "1990")
		svc := th.NewFakeService()
		svc.Results["yesterday beatles"] = []models.RemoteCandidate{near, karaoke}

		res := newResolver(svc, nil).resolve(ctx, yesterday())
		if res.Outcome != models.OutcomeUnavailable {
			t.Fatalf("expected unavailable, got %s", res.Outcome)
		}
		if res.Suggestion == nil || res.Suggestion.URI != near.URI || res.Distance <= 0 {
			t.Errorf("unexpected suggestion %+v (%d)", res.Suggestion, res.Distance)
		}
	})
}

func TestResolveAll(t *testing.T) {
	ctx := context.Background()

	missing := &models.LocalTrack{Title: "Unknown Song", Artist: "Nobody", Length: 200, Path: "/music/unknown.flac"}
	broken := &models.LocalTrack{Title: "Broken", Artist: "Band", Length: 100, Path: "/music/broken.mp3"}

	svc := th.NewFakeService()
	svc.Results["yesterday beatles"] = []models.RemoteCandidate{beatles}
	svc.SearchErr["broken band"] = shared.ErrForbidden

	first := yesterday()
	again := yesterday()
	known := &models.LocalTrack{Title: "Known", Path: "/music/known.mp3", URI: models.ResolvedURI("spotify:track:known")}

	playlists := []*models.Playlist{
		{Name: "One", Tracks: []*models.LocalTrack{first, missing, broken}},
		{Name: "Two", Tracks: []*models.LocalTrack{again, known, {Title: "Unknown Song", Artist: "Nobody", Path: "/music/unknown.flac"}}},
	}

	rec := &memoryRecorder{}
	progress := make(chan ProgressUpdate, 100)
	result, err := newResolver(svc, rec).ResolveAll(ctx, playlists, progress)
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}

	t.Run("per track outcomes", func(t *testing.T) {
		want := []models.Outcome{
			models.OutcomeStrong, models.OutcomeUnavailable, models.OutcomeFailed,
			models.OutcomeSkipped, models.OutcomeSkipped, models.OutcomeSkipped,
		}
		var got []models.Outcome
		for _, r := range result.Results {
			got = append(got, r.Outcome)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("outcomes = %v, want %v", got, want)
		}
		if result.Results[3].Playlist != "Two" {
			t.Errorf("expected playlist name on results, got %q", result.Results[3].Playlist)
		}
		if len(result.Unresolved()) != 2 {
			t.Errorf("expected 2 unresolved results, got %d", len(result.Unresolved()))
		}
	})

	t.Run("duplicate files share their state", func(t *testing.T) {
		if again.URI != first.URI {
			t.Errorf("expected %v, got %v", first.URI, again.URI)
		}
		dup := playlists[1].Tracks[2]
		if dup.URI.Status() != models.Unavailable {
			t.Errorf("expected the duplicate miss to be unavailable, got %v", dup.URI)
		}
		count := 0
		for _, q := range svc.Queries() {
			if q == "yesterday beatles" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("expected one search for the duplicate, got %d", count)
		}
	})

	t.Run("misses become unavailable, failures stay unresolved", func(t *testing.T) {
		if missing.URI.Status() != models.Unavailable {
			t.Errorf("expected unavailable, got %v", missing.URI)
		}
		if broken.URI.Known() {
			t.Errorf("expected a failed track to stay unresolved, got %v", broken.URI)
		}
	})

	t.Run("records searched tracks under one run", func(t *testing.T) {
		if len(rec.records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(rec.records))
		}
		for _, r := range rec.records {
			if r.RunID != result.RunID {
				t.Errorf("unexpected run id %q", r.RunID)
			}
		}
		if rec.records[0].URI != beatles.URI || rec.records[2].Error == "" {
			t.Errorf("unexpected records %+v %+v", rec.records[0], rec.records[2])
		}
	})

	t.Run("sends progress", func(t *testing.T) {
		close(progress)
		var phases int
		for u := range progress {
			if u.Phase != ResolveTracks || u.Total != 6 {
				t.Errorf("unexpected update %+v", u)
			}
			phases++
		}
		if phases != 12 {
			t.Errorf("expected 12 updates, got %d", phases)
		}
	})

	t.Run("counts", func(t *testing.T) {
		if result.Counts[models.OutcomeSkipped] != 3 || result.Counts[models.OutcomeStrong] != 1 {
			t.Errorf("unexpected counts %v", result.Counts)
		}
	})
}

func TestResolveAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := th.NewFakeService()
	playlists := []*models.Playlist{{Name: "One", Tracks: []*models.LocalTrack{yesterday()}}}

	result, err := newResolver(svc, nil).ResolveAll(ctx, playlists, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(result.Results) != 0 || svc.Calls() != 0 {
		t.Errorf("expected no work, got %d results and %d calls", len(result.Results), svc.Calls())
	}
	if playlists[0].Tracks[0].URI.Known() {
		t.Error("cancelled runs must not mark tracks")
	}
}

func TestResolverRecorderErrors(t *testing.T) {
	svc := th.NewFakeService()
	svc.Results["yesterday beatles"] = []models.RemoteCandidate{beatles}
	rec := &memoryRecorder{err: errors.New("disk full")}

	playlists := []*models.Playlist{{Name: "One", Tracks: []*models.LocalTrack{yesterday()}}}
	result, err := newResolver(svc, rec).ResolveAll(context.Background(), playlists, nil)
	if err != nil {
		t.Fatalf("recording failures must not fail the run: %v", err)
	}
	if result.Counts[models.OutcomeStrong] != 1 {
		t.Errorf("unexpected counts %v", result.Counts)
	}
}

func TestPhase(t *testing.T) {
	phases := map[Phase]string{
		ResolveTracks:  "resolve_tracks",
		FetchRemote:    "fetch_remote",
		PushPlaylist:   "push_playlist",
		Compare:        "compare",
		RepairURIs:     "repair_uris",
		ClearPlaylist:  "clear_playlist",
		DeletePlaylist: "delete_playlist",
		FetchArtwork:   "fetch_artwork",
		WriteTags:      "write_tags",
		Phase(99):      "",
	}
	for p, want := range phases {
		if p.String() != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, p.String(), want)
		}
	}
}
