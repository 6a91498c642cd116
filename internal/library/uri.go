package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/desertthunder/m3usync/internal/models"
)

// URIStore is the sidecar mapping album → lower-cased filename → URI.
//
// Album keys keep the case they were first written with but are matched ignoring case.
type URIStore struct {
	albums map[string]map[string]models.URIState
}

// NewURIStore returns an empty store.
func NewURIStore() *URIStore {
	return &URIStore{albums: map[string]map[string]models.URIState{}}
}

// LoadURIs reads the sidecar at path. A missing file yields an empty store.
func LoadURIs(path string) (*URIStore, error) {
	store := NewURIStore()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read uri file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return store, nil
	}

	var raw map[string]map[string]models.URIState
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse uri file %s: %w", path, err)
	}

	for album, tracks := range raw {
		for name, uri := range tracks {
			store.Set(album, name, uri)
		}
	}
	return store, nil
}

// Len returns the number of tracks in the store.
func (s *URIStore) Len() int {
	n := 0
	for _, tracks := range s.albums {
		n += len(tracks)
	}
	return n
}

// Lookup returns the stored state of the named file in album, which is [models.Unresolved]
// when nothing is recorded.
func (s *URIStore) Lookup(album, name string) models.URIState {
	key, ok := s.albumKey(album)
	if !ok {
		return models.URIState{}
	}
	return s.albums[key][strings.ToLower(name)]
}

// Set records uri for the named file in album. Unresolved states are not stored.
func (s *URIStore) Set(album, name string, uri models.URIState) {
	if !uri.Known() {
		return
	}
	key, ok := s.albumKey(album)
	if !ok {
		key = album
		s.albums[key] = map[string]models.URIState{}
	}
	s.albums[key][strings.ToLower(name)] = uri
}

// Apply copies stored states onto tracks that are still unresolved and returns how many
// were filled in.
func (s *URIStore) Apply(playlists ...*models.Playlist) int {
	n := 0
	for _, p := range playlists {
		for _, t := range p.Tracks {
			if t.URI.Known() {
				continue
			}
			if uri := s.Lookup(t.Album, t.Filename()); uri.Known() {
				t.URI = uri
				n++
			}
		}
	}
	return n
}

// Update records the state of every searched track of playlists.
func (s *URIStore) Update(playlists ...*models.Playlist) {
	for _, p := range playlists {
		for _, t := range p.Tracks {
			s.Set(t.Album, t.Filename(), t.URI)
		}
	}
}

// Save writes the store to path with albums and filenames sorted ignoring case.
func (s *URIStore) Save(path string) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("failed to format uri file: %w", err)
	}
	out.WriteByte('\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create uri file directory: %w", err)
		}
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write uri file: %w", err)
	}
	return nil
}

// MarshalJSON encodes the store with keys in case-insensitive order. encoding/json would
// sort map keys by byte value.
func (s *URIStore) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, album := range sortedKeys(s.albums) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, album); err != nil {
			return nil, err
		}

		tracks := s.albums[album]
		buf.WriteByte('{')
		for j, name := range sortedKeys(tracks) {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, name); err != nil {
				return nil, err
			}
			v, err := json.Marshal(tracks[name])
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *URIStore) albumKey(album string) (string, bool) {
	if _, ok := s.albums[album]; ok {
		return album, true
	}
	for k := range s.albums {
		if strings.EqualFold(k, album) {
			return k, true
		}
	}
	return "", false
}

func writeKey(buf *bytes.Buffer, key string) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if a == b {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}
