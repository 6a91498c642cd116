package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/m3usync/internal/api"
	"github.com/desertthunder/m3usync/internal/shared"
)

const playlistID1 = "37i9dQZF1DXcBWIGoYBM5M"

func trackJSON(id, name string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"uri":          "spotify:track:" + id,
		"duration_ms":  126000,
		"track_number": 13,
		"artists":      []any{map[string]any{"name": "The Beatles"}},
		"album": map[string]any{
			"name":         "Help!",
			"release_date": "1965-08-06",
			"images": []any{
				map[string]any{"url": "https://img/small", "height": 64, "width": 64},
				map[string]any{"url": "https://img/large", "height": 640, "width": 640},
				map[string]any{"url": "https://img/medium", "height": 300, "width": 300},
			},
		},
	}
}

// fakeSpotify serves a tiny in-memory subset of the Web API.
type fakeSpotify struct {
	*httptest.Server
	mu       sync.Mutex
	tracks   []string // uris in playlistID1
	requests []string
	bodies   []map[string]any
}

func newFakeSpotify(t *testing.T, uris ...string) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{tracks: uris}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		f.write(w, map[string]any{"id": "user 1", "display_name": "Tester", "href": "https://api/users/user1"})
	})

	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "track" || q.Get("limit") != "10" {
			t.Errorf("unexpected search params %v", q)
		}
		f.write(w, map[string]any{"tracks": map[string]any{"items": []any{trackJSON("3BQHpFgAp4l80e1XslIjNI", "Yesterday")}}})
	})

	mux.HandleFunc("GET /v1/tracks", func(w http.ResponseWriter, r *http.Request) {
		var items []any
		for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
			if id == "0000000000000000000000" {
				items = append(items, nil)
				continue
			}
			items = append(items, trackJSON(id, "Track "+id[:3]))
		}
		f.write(w, map[string]any{"tracks": items})
	})

	mux.HandleFunc("GET /v1/me/playlists", func(w http.ResponseWriter, r *http.Request) {
		page := map[string]any{"next": nil}
		item := func(id, name string) map[string]any {
			return map[string]any{"id": id, "name": name, "uri": "spotify:playlist:" + id, "tracks": map[string]any{"total": 2}}
		}
		if r.URL.Query().Get("offset") == "" {
			page["items"] = []any{item(playlistID1, "Road Trip")}
			page["next"] = f.URL + "/v1/me/playlists?offset=1&limit=50"
		} else {
			page["items"] = []any{item("1111111111111111111111", "Chill")}
		}
		f.write(w, page)
	})

	mux.HandleFunc("GET /v1/playlists/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != playlistID1 {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error": {"status": 404, "message": "Not found."}}`)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()

		// first page inline, the rest through the tracks endpoint
		items := []any{}
		for i, uri := range f.tracks {
			if i == 1 {
				break
			}
			items = append(items, map[string]any{"track": trackJSON(strings.TrimPrefix(uri, "spotify:track:"), "t")})
		}
		items = append(items, map[string]any{"track": nil})
		var next any
		if len(f.tracks) > 1 {
			next = f.URL + "/v1/playlists/" + playlistID1 + "/tracks?offset=1"
		}
		f.write(w, map[string]any{
			"id":            playlistID1,
			"name":          "Road Trip",
			"uri":           "spotify:playlist:" + playlistID1,
			"owner":         map[string]any{"id": "user 1"},
			"external_urls": map[string]any{"spotify": "https://open.spotify.com/playlist/" + playlistID1},
			"tracks":        map[string]any{"total": len(f.tracks), "items": items, "next": next},
		})
	})

	mux.HandleFunc("GET /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		items := []any{}
		for _, uri := range f.tracks[1:] {
			items = append(items, map[string]any{"track": trackJSON(strings.TrimPrefix(uri, "spotify:track:"), "t")})
		}
		f.write(w, map[string]any{"items": items, "next": nil})
	})

	mux.HandleFunc("POST /v1/users/{user}/playlists", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		if r.PathValue("user") != "user 1" {
			t.Errorf("unexpected user %q", r.PathValue("user"))
		}
		w.WriteHeader(http.StatusCreated)
		f.write(w, map[string]any{"id": "2222222222222222222222", "name": body["name"], "public": body["public"], "uri": "spotify:playlist:2222222222222222222222"})
	})

	mux.HandleFunc("POST /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		f.mu.Lock()
		for _, u := range body["uris"].([]any) {
			f.tracks = append(f.tracks, u.(string))
		}
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		f.write(w, map[string]any{"snapshot_id": "s"})
	})

	mux.HandleFunc("DELETE /v1/playlists/{id}/tracks", func(w http.ResponseWriter, r *http.Request) {
		body := f.record(r)
		remove := map[string]bool{}
		for _, item := range body["tracks"].([]any) {
			remove[item.(map[string]any)["uri"].(string)] = true
		}
		f.mu.Lock()
		var kept []string
		for _, uri := range f.tracks {
			if !remove[uri] {
				kept = append(kept, uri)
			}
		}
		f.tracks = kept
		f.mu.Unlock()
		f.write(w, map[string]any{"snapshot_id": "s"})
	})

	mux.HandleFunc("DELETE /v1/playlists/{id}/followers", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(http.StatusOK)
	})

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSpotify) record(r *http.Request) map[string]any {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	return body
}

func (f *fakeSpotify) write(w http.ResponseWriter, v any) {
	json.NewEncoder(w).Encode(v)
}

func (f *fakeSpotify) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func newTestService(f *fakeSpotify) *SpotifyService {
	logger := shared.NewLogger(io.Discard)
	req := api.NewRequester(api.RequesterOpts{
		Backoff: api.Backoff{Start: time.Millisecond, Factor: 1, Count: 1},
		Logger:  logger,
	})
	return NewSpotifyService(req, nil, SpotifyOpts{BaseURL: f.URL + "/v1", Logger: logger})
}

func TestSpotifyService(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if s := newTestService(newFakeSpotify(t)); s.Name() != "Spotify" {
			t.Errorf("unexpected name %q", s.Name())
		}
	})

	t.Run("Search returns typed candidates", func(t *testing.T) {
		s := newTestService(newFakeSpotify(t))
		results, err := s.Search(ctx, "yesterday the beatles", "", 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}

		c := results[0]
		if c.Title != "Yesterday" || c.AlbumName != "Help!" || c.DurationMS != 126000 || c.TrackNumber != 13 {
			t.Errorf("unexpected candidate %+v", c)
		}
		if !reflect.DeepEqual(c.Artists, []string{"The Beatles"}) {
			t.Errorf("unexpected artists %v", c.Artists)
		}
		if c.ImageURL != "https://img/large" {
			t.Errorf("expected the largest image, got %q", c.ImageURL)
		}
		if c.URI != "spotify:track:3BQHpFgAp4l80e1XslIjNI" {
			t.Errorf("unexpected URI %q", c.URI)
		}
	})

	t.Run("Tracks batches and drops unknown ids", func(t *testing.T) {
		f := newFakeSpotify(t)
		s := newTestService(f)

		ids := []string{"spotify:track:3BQHpFgAp4l80e1XslIjNI", "0000000000000000000000"}
		for i := range 60 {
			ids = append(ids, fmt.Sprintf("%022d", i+1))
		}

		results, err := s.Tracks(ctx, ids)
		if err != nil {
			t.Fatalf("Tracks failed: %v", err)
		}
		if len(results) != 61 {
			t.Errorf("expected 61 tracks, got %d", len(results))
		}
		if n := f.count("GET /v1/tracks"); n != 2 {
			t.Errorf("expected 2 batched requests, got %d", n)
		}

		if _, err := s.Tracks(ctx, []string{"spotify:album:0PT5m6hwPRrpBFlfTsX3WT"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for album id, got %v", err)
		}
	})

	t.Run("Playlists follows pages", func(t *testing.T) {
		s := newTestService(newFakeSpotify(t))
		playlists, err := s.Playlists(ctx)
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if len(playlists) != 2 || playlists[1].Name != "Chill" {
			t.Errorf("unexpected playlists %+v", playlists)
		}

		p, err := s.PlaylistByName(ctx, "road trip")
		if err != nil || p.ID != playlistID1 {
			t.Errorf("expected case-insensitive lookup, got %+v (%v)", p, err)
		}

		if _, err := s.PlaylistByName(ctx, "missing"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("Playlist collects all tracks", func(t *testing.T) {
		uris := []string{"spotify:track:aaaaaaaaaaaaaaaaaaaaaa", "spotify:track:bbbbbbbbbbbbbbbbbbbbbb", "spotify:track:cccccccccccccccccccccc"}
		s := newTestService(newFakeSpotify(t, uris...))

		p, err := s.Playlist(ctx, "https://open.spotify.com/playlist/"+playlistID1)
		if err != nil {
			t.Fatalf("Playlist failed: %v", err)
		}
		if !reflect.DeepEqual(p.URIs(), uris) {
			t.Errorf("URIs = %v, want %v", p.URIs(), uris)
		}
		if p.URL != "https://open.spotify.com/playlist/"+playlistID1 || p.OwnerID != "user 1" {
			t.Errorf("unexpected playlist fields %+v", p)
		}

		if _, err := s.Playlist(ctx, "spotify:playlist:9999999999999999999999"); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		if _, err := s.Playlist(ctx, "spotify:track:3BQHpFgAp4l80e1XslIjNI"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("CreatePlaylist", func(t *testing.T) {
		f := newFakeSpotify(t)
		s := newTestService(f)

		p, err := s.CreatePlaylist(ctx, "New Mix", "made locally", false)
		if err != nil {
			t.Fatalf("CreatePlaylist failed: %v", err)
		}
		if p.Name != "New Mix" || p.ID == "" {
			t.Errorf("unexpected playlist %+v", p)
		}
		if f.bodies[0]["description"] != "made locally" || f.bodies[0]["public"] != false {
			t.Errorf("unexpected request body %v", f.bodies[0])
		}
	})

	t.Run("AddTracks skips duplicates and batches", func(t *testing.T) {
		existing := "spotify:track:aaaaaaaaaaaaaaaaaaaaaa"
		f := newFakeSpotify(t, existing)
		s := newTestService(f)

		uris := []string{existing}
		for i := range 150 {
			uris = append(uris, fmt.Sprintf("spotify:track:%022d", i))
		}
		uris = append(uris, uris[1])

		added, err := s.AddTracks(ctx, playlistID1, uris, true)
		if err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}
		if added != 150 {
			t.Errorf("expected 150 added, got %d", added)
		}
		if n := f.count("POST /v1/playlists/"); n != 2 {
			t.Errorf("expected 2 batched POSTs, got %d", n)
		}

		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.tracks) != 151 || f.tracks[1] != uris[1] || f.tracks[150] != uris[150] {
			t.Errorf("order not preserved: %d tracks", len(f.tracks))
		}
	})

	t.Run("ClearTracks removes everything", func(t *testing.T) {
		f := newFakeSpotify(t, "spotify:track:aaaaaaaaaaaaaaaaaaaaaa", "spotify:track:bbbbbbbbbbbbbbbbbbbbbb")
		s := newTestService(f)

		removed, err := s.ClearTracks(ctx, playlistID1, nil)
		if err != nil {
			t.Fatalf("ClearTracks failed: %v", err)
		}
		if removed != 2 {
			t.Errorf("expected 2 removed, got %d", removed)
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.tracks) != 0 {
			t.Errorf("expected empty playlist, got %v", f.tracks)
		}
	})

	t.Run("DeletePlaylist", func(t *testing.T) {
		f := newFakeSpotify(t)
		s := newTestService(f)
		if err := s.DeletePlaylist(ctx, "spotify:playlist:"+playlistID1); err != nil {
			t.Fatalf("DeletePlaylist failed: %v", err)
		}
		if f.count("DELETE /v1/playlists/"+playlistID1+"/followers") != 1 {
			t.Error("expected a followers DELETE")
		}
	})

	t.Run("Tester", func(t *testing.T) {
		f := newFakeSpotify(t)
		s := newTestService(f)
		test := s.Tester(f.Client())
		if !test(ctx, http.Header{"Authorization": {"Bearer x"}}) {
			t.Error("expected profile response to pass")
		}

		broken := NewSpotifyService(api.NewRequester(api.RequesterOpts{}), nil, SpotifyOpts{BaseURL: f.URL + "/nope"})
		if broken.Tester(f.Client())(ctx, http.Header{}) {
			t.Error("expected 404 to fail the test")
		}
	})
}
