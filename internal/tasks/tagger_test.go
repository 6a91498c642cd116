package tasks

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	th "github.com/desertthunder/m3usync/internal/testing"
)

type fakeWriter struct {
	mu      sync.Mutex
	uris    map[string]string
	artwork map[string][]byte
	fail    map[string]bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{uris: map[string]string{}, artwork: map[string][]byte{}, fail: map[string]bool{}}
}

func (w *fakeWriter) WriteURI(path string, uri models.URIState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail[path] {
		return shared.ErrUnsupportedFormat
	}
	w.uris[path] = uri.URI()
	return nil
}

func (w *fakeWriter) EmbedArtwork(path string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.artwork[path] = data
	return nil
}

func TestTagger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("cover:" + r.URL.Path))
	}))
	defer srv.Close()

	svc := th.NewFakeService()
	svc.Catalog["spotify:track:a"] = models.RemoteCandidate{URI: "spotify:track:a", ImageURL: srv.URL + "/a.jpg"}
	svc.Catalog["spotify:track:b"] = models.RemoteCandidate{URI: "spotify:track:b", ImageURL: srv.URL + "/b.jpg"}

	a := &models.LocalTrack{Path: "/m/a.mp3", URI: models.ResolvedURI("spotify:track:a")}
	b := &models.LocalTrack{Path: "/m/b.flac", URI: models.ResolvedURI("spotify:track:b"), HasArtwork: true}
	bad := &models.LocalTrack{Path: "/m/c.m4a", URI: models.ResolvedURI("spotify:track:c")}
	playlists := []*models.Playlist{
		{Name: "One", Tracks: []*models.LocalTrack{a, b, {Path: "/m/none.mp3", URI: models.UnavailableURI()}}},
		{Name: "Two", Tracks: []*models.LocalTrack{{Path: "/m/a.mp3", URI: models.ResolvedURI("spotify:track:a")}, bad}},
	}

	writer := newFakeWriter()
	writer.fail[bad.Path] = true

	tagger := NewTagger(svc, writer, shared.NewLogger(&bytes.Buffer{}))
	progress := make(chan ProgressUpdate, 10)
	result, err := tagger.Tag(context.Background(), playlists, TagOpts{Artwork: true, NumWorkers: 2, RateLimit: 100, Client: srv.Client()}, progress)
	if err != nil {
		t.Fatalf("Tag failed: %v", err)
	}

	t.Run("tags each resolved file once", func(t *testing.T) {
		if result.Total != 3 || result.Tagged != 2 || result.Failed != 1 {
			t.Errorf("unexpected totals %+v", result)
		}
		if writer.uris["/m/a.mp3"] != "spotify:track:a" || writer.uris["/m/b.flac"] != "spotify:track:b" {
			t.Errorf("unexpected uris %v", writer.uris)
		}
		if _, ok := writer.uris["/m/none.mp3"]; ok {
			t.Error("unavailable tracks must not be tagged")
		}
	})

	t.Run("embeds artwork only where missing", func(t *testing.T) {
		if result.Artwork != 1 {
			t.Errorf("expected 1 artwork, got %d", result.Artwork)
		}
		if string(writer.artwork["/m/a.mp3"]) != "cover:/a.jpg" {
			t.Errorf("unexpected artwork %q", writer.artwork["/m/a.mp3"])
		}
		if _, ok := writer.artwork["/m/b.flac"]; ok {
			t.Error("files with artwork must be left alone")
		}
		if !a.HasArtwork {
			t.Error("expected the track marked as having artwork")
		}
	})

	t.Run("results are sorted and carry errors", func(t *testing.T) {
		paths := []string{result.Results[0].Path, result.Results[1].Path, result.Results[2].Path}
		if paths[0] != "/m/a.mp3" || paths[1] != "/m/b.flac" || paths[2] != "/m/c.m4a" {
			t.Errorf("unexpected order %v", paths)
		}
		if !errors.Is(result.Results[2].Error, shared.ErrUnsupportedFormat) {
			t.Errorf("unexpected error %v", result.Results[2].Error)
		}
	})

	t.Run("progress", func(t *testing.T) {
		close(progress)
		counts := map[Phase]int{}
		for u := range progress {
			counts[u.Phase]++
		}
		if counts[FetchArtwork] != 1 || counts[WriteTags] != 3 {
			t.Errorf("unexpected updates %v", counts)
		}
	})
}

func TestTaggerWithoutArtwork(t *testing.T) {
	writer := newFakeWriter()
	playlists := []*models.Playlist{{Name: "One", Tracks: []*models.LocalTrack{
		{Path: "/m/a.mp3", URI: models.ResolvedURI("spotify:track:a")},
	}}}

	result, err := NewTagger(nil, writer, nil).Tag(context.Background(), playlists, TagOpts{Artwork: true}, nil)
	if err != nil {
		t.Fatalf("Tag failed: %v", err)
	}
	if result.Tagged != 1 || result.Artwork != 0 || len(writer.artwork) != 0 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestTaggerLookupFailure(t *testing.T) {
	svc := th.NewFakeService()
	svc.Err = shared.ErrForbidden
	writer := newFakeWriter()
	playlists := []*models.Playlist{{Name: "One", Tracks: []*models.LocalTrack{
		{Path: "/m/a.mp3", URI: models.ResolvedURI("spotify:track:a")},
	}}}

	result, err := NewTagger(svc, writer, shared.NewLogger(&bytes.Buffer{})).Tag(context.Background(), playlists, TagOpts{Artwork: true}, nil)
	if err != nil {
		t.Fatalf("a failed artwork lookup must not fail the run: %v", err)
	}
	if result.Tagged != 1 {
		t.Errorf("expected the uri written, got %+v", result)
	}
}

func TestTaggerNoWriter(t *testing.T) {
	if _, err := NewTagger(nil, nil, nil).Tag(context.Background(), nil, TagOpts{}, nil); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
