package library

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

// playlistExts are the file extensions loaded as playlists.
var playlistExts = []string{".m3u", ".m3u8"}

// Loader reads m3u playlists and the tags of the files they list.
type Loader struct {
	Reader TagReader
	Logger *log.Logger
}

// NewLoader creates a [Loader] reading tags with [Files].
func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Loader{Reader: Files{}, Logger: logger}
}

// LoadPlaylists loads every playlist in dir, sorted by name ignoring case.
func (l *Loader) LoadPlaylists(dir string) ([]*models.Playlist, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist directory: %w", err)
	}

	var playlists []*models.Playlist
	for _, e := range entries {
		if e.IsDir() || !isPlaylist(e.Name()) {
			continue
		}
		p, err := l.LoadPlaylist(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, p)
	}

	sort.SliceStable(playlists, func(i, j int) bool {
		return strings.ToLower(playlists[i].Name) < strings.ToLower(playlists[j].Name)
	})
	return playlists, nil
}

// LoadPlaylist reads one m3u file. Comment lines are ignored, relative paths are resolved
// against the playlist's directory and files that do not exist are skipped. Position is the
// index of the entry among the playlist's path lines.
func (l *Loader) LoadPlaylist(path string) (*models.Playlist, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	base := filepath.Base(path)
	playlist := &models.Playlist{
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
		Path: path,
	}

	dir := filepath.Dir(path)
	position := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "﻿"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pos := position
		position++

		trackPath := filepath.FromSlash(line)
		if !filepath.IsAbs(trackPath) {
			trackPath = filepath.Join(dir, trackPath)
		}

		if _, err := os.Stat(trackPath); errors.Is(err, fs.ErrNotExist) {
			l.Logger.Debug("skipping missing file", "playlist", playlist.Name, "path", trackPath)
			continue
		}

		track, err := l.Reader.Read(trackPath)
		if err != nil {
			l.Logger.Warn("could not load track", "playlist", playlist.Name, "path", trackPath, "error", err)
			continue
		}
		track.Position = &pos
		playlist.Tracks = append(playlist.Tracks, track)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read playlist %s: %w", path, err)
	}

	l.Logger.Debug("loaded playlist", "name", playlist.Name, "tracks", len(playlist.Tracks))
	return playlist, nil
}

// WritePlaylist writes the tracks of p to path as an extended m3u file.
func WritePlaylist(path string, p *models.Playlist) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	for _, t := range p.Tracks {
		fmt.Fprintf(&b, "#EXTINF:%d,%s\n%s\n", int(t.Length), t.String(), t.Path)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write playlist: %w", err)
	}
	return nil
}

func isPlaylist(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range playlistExts {
		if ext == e {
			return true
		}
	}
	return false
}
