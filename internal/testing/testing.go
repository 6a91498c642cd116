// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

// FakeService is an in-memory [services.Service].
//
// Search answers from Results keyed by the exact query; Tracks answers from Catalog keyed by
// URI. Playlists live in memory and keep their track order.
type FakeService struct {
	Results   map[string][]models.RemoteCandidate
	Catalog   map[string]models.RemoteCandidate
	SearchErr map[string]error // per query failures
	Err       error            // returned by every call when set

	mu        sync.Mutex
	queries   []string
	calls     int
	playlists []*models.RemotePlaylist
}

// NewFakeService creates a [FakeService] with empty lookup tables.
func NewFakeService() *FakeService {
	return &FakeService{
		Results:   map[string][]models.RemoteCandidate{},
		Catalog:   map[string]models.RemoteCandidate{},
		SearchErr: map[string]error{},
	}
}

func (f *FakeService) Name() string { return "fake" }

// Queries returns every search query received, in order.
func (f *FakeService) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Calls returns the number of calls of any kind.
func (f *FakeService) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// AddPlaylist stores a remote playlist holding tracks and returns it.
func (f *FakeService) AddPlaylist(id, name string, tracks ...models.RemoteCandidate) *models.RemotePlaylist {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.RemotePlaylist{
		ID:         id,
		Name:       name,
		URI:        "spotify:playlist:" + id,
		URL:        "https://open.spotify.com/playlist/" + id,
		TrackCount: len(tracks),
		Tracks:     tracks,
	}
	f.playlists = append(f.playlists, p)
	return p
}

func (f *FakeService) Search(ctx context.Context, query, kind string, limit int) ([]models.RemoteCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.Err != nil {
		return nil, f.Err
	}
	if err := f.SearchErr[query]; err != nil {
		return nil, err
	}
	results := f.Results[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return append([]models.RemoteCandidate(nil), results...), nil
}

func (f *FakeService) Tracks(ctx context.Context, ids []string) ([]models.RemoteCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	var out []models.RemoteCandidate
	for _, id := range ids {
		if c, ok := f.Catalog[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *FakeService) Playlists(ctx context.Context) ([]models.RemotePlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]models.RemotePlaylist, 0, len(f.playlists))
	for _, p := range f.playlists {
		c := *p
		c.TrackCount = len(p.Tracks)
		c.Tracks = nil
		out = append(out, c)
	}
	return out, nil
}

func (f *FakeService) Playlist(ctx context.Context, id string) (*models.RemotePlaylist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	p, err := f.find(id)
	if err != nil {
		return nil, err
	}
	c := *p
	c.Tracks = append([]models.RemoteCandidate(nil), p.Tracks...)
	return &c, nil
}

func (f *FakeService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.RemotePlaylist, error) {
	if err := f.count(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	id := fmt.Sprintf("fake%04d", len(f.playlists)+1)
	f.mu.Unlock()

	p := f.AddPlaylist(id, name)
	p.Description = description
	p.Public = public
	c := *p
	return &c, nil
}

func (f *FakeService) AddTracks(ctx context.Context, playlistID string, uris []string, skipDupes bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return 0, f.Err
	}
	p, err := f.find(playlistID)
	if err != nil {
		return 0, err
	}

	present := map[string]bool{}
	for _, t := range p.Tracks {
		present[t.URI] = true
	}

	added := 0
	for _, uri := range uris {
		if skipDupes && present[uri] {
			continue
		}
		c, ok := f.Catalog[uri]
		if !ok {
			c = models.RemoteCandidate{URI: uri}
		}
		p.Tracks = append(p.Tracks, c)
		present[uri] = true
		added++
	}
	return added, nil
}

func (f *FakeService) ClearTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return 0, f.Err
	}
	p, err := f.find(playlistID)
	if err != nil {
		return 0, err
	}

	if uris == nil {
		n := len(p.Tracks)
		p.Tracks = nil
		return n, nil
	}

	remove := map[string]bool{}
	for _, u := range uris {
		remove[u] = true
	}
	kept := p.Tracks[:0]
	for _, t := range p.Tracks {
		if !remove[t.URI] {
			kept = append(kept, t)
		}
	}
	n := len(p.Tracks) - len(kept)
	p.Tracks = kept
	return n, nil
}

func (f *FakeService) DeletePlaylist(ctx context.Context, playlistID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return f.Err
	}
	for i, p := range f.playlists {
		if p.ID == playlistID {
			f.playlists = append(f.playlists[:i], f.playlists[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
}

func (f *FakeService) count() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.Err
}

func (f *FakeService) find(id string) (*models.RemotePlaylist, error) {
	for _, p := range f.playlists {
		if p.ID == id || p.URI == id || strings.HasSuffix(id, "/"+p.ID) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, id)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
