package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/matching"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/services"
	"github.com/desertthunder/m3usync/internal/shared"
)

// PushedPlaylist is the outcome of pushing one local playlist.
type PushedPlaylist struct {
	Name    string
	ID      string
	URL     string
	Created bool
	Added   int
	Skipped bool // nothing resolved to push
}

// PushResult summarizes a push run.
type PushResult struct {
	Playlists []PushedPlaylist
	Created   int
	Added     int
}

// Syncer mirrors local playlists onto the remote service.
type Syncer struct {
	svc    services.Service
	logger *log.Logger

	// Description is set on playlists the Syncer creates.
	Description string
	// Public controls the visibility of created playlists.
	Public bool
}

// NewSyncer creates a Syncer using svc.
func NewSyncer(svc services.Service, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Syncer{svc: svc, logger: logger, Description: "Synced from " + shared.AppName}
}

// remotes lists the user's playlists keyed by lower-cased name. The first playlist of a name wins.
func (s *Syncer) remotes(ctx context.Context, progress chan<- ProgressUpdate) (map[string]models.RemotePlaylist, error) {
	sendProgress(progress, fetchRemoteUpdate(1, 1))

	playlists, err := s.svc.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote playlists: %w", err)
	}

	byName := make(map[string]models.RemotePlaylist, len(playlists))
	for _, p := range playlists {
		key := strings.ToLower(p.Name)
		if _, ok := byName[key]; !ok {
			byName[key] = p
		}
	}
	return byName, nil
}

// Push creates each local playlist remotely when no playlist of the same name exists, then
// appends the playlist's resolved URIs in order, skipping those already present.
func (s *Syncer) Push(ctx context.Context, playlists []*models.Playlist, progress chan<- ProgressUpdate) (*PushResult, error) {
	if s.svc == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrInvalidConfig)
	}

	remotes, err := s.remotes(ctx, progress)
	if err != nil {
		return nil, err
	}

	result := &PushResult{}
	for i, p := range playlists {
		pushed := PushedPlaylist{Name: p.Name}

		uris := p.URIs()
		if len(uris) == 0 {
			pushed.Skipped = true
			result.Playlists = append(result.Playlists, pushed)
			s.logger.Info("nothing to push", "playlist", p.Name)
			continue
		}

		remote, ok := remotes[strings.ToLower(p.Name)]
		if !ok {
			created, err := s.svc.CreatePlaylist(ctx, p.Name, s.Description, s.Public)
			if err != nil {
				return result, fmt.Errorf("failed to create playlist %s: %w", p.Name, err)
			}
			remote = *created
			remotes[strings.ToLower(p.Name)] = remote
			pushed.Created = true
			result.Created++
		}
		pushed.ID, pushed.URL = remote.ID, remote.URL

		added, err := s.svc.AddTracks(ctx, remote.ID, uris, !pushed.Created)
		if err != nil {
			return result, fmt.Errorf("failed to add tracks to %s: %w", p.Name, err)
		}
		pushed.Added = added
		result.Added += added
		result.Playlists = append(result.Playlists, pushed)

		s.logger.Debug("pushed playlist", "playlist", p.Name, "id", remote.ID, "created", pushed.Created, "added", added)
		sendProgress(progress, pushPlaylistUpdate(i+1, len(playlists), pushed))
	}
	return result, nil
}

// Differences compares each local playlist with the remote playlist of the same name.
// Playlists with no remote counterpart are left out.
func (s *Syncer) Differences(ctx context.Context, playlists []*models.Playlist, progress chan<- ProgressUpdate) ([]models.Difference, error) {
	remotes, err := s.remotes(ctx, progress)
	if err != nil {
		return nil, err
	}

	var diffs []models.Difference
	for i, p := range playlists {
		summary, ok := remotes[strings.ToLower(p.Name)]
		if !ok {
			s.logger.Debug("no remote playlist", "playlist", p.Name)
			continue
		}
		sendProgress(progress, compareUpdate(i+1, len(playlists), p.Name))

		remote, err := s.svc.Playlist(ctx, summary.ID)
		if err != nil {
			return diffs, fmt.Errorf("failed to fetch playlist %s: %w", p.Name, err)
		}
		diffs = append(diffs, compare(p, remote))
	}
	return diffs, nil
}

func compare(local *models.Playlist, remote *models.RemotePlaylist) models.Difference {
	diff := models.Difference{Playlist: local.Name, RemoteID: remote.ID, RemoteURL: remote.URL}

	remoteURIs := map[string]bool{}
	for _, uri := range remote.URIs() {
		remoteURIs[uri] = true
	}
	localURIs := map[string]bool{}
	for _, t := range local.Tracks {
		if t.URI.Status() != models.Resolved {
			continue
		}
		localURIs[t.URI.URI()] = true
		if !remoteURIs[t.URI.URI()] {
			diff.Missing = append(diff.Missing, t)
		}
	}
	for _, c := range remote.Tracks {
		if !localURIs[c.URI] {
			diff.Extra = append(diff.Extra, c)
		}
	}
	return diff
}

// UpdateURIs re-points local tracks whose URI is absent from the remote playlist to an extra
// remote track of the same cleaned title. It returns the number of tracks changed.
//
// This repairs URIs after the remote service relinks a track to a new release.
func (s *Syncer) UpdateURIs(ctx context.Context, playlists []*models.Playlist, progress chan<- ProgressUpdate) (int, error) {
	diffs, err := s.Differences(ctx, playlists, progress)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, d := range diffs {
		used := map[int]bool{}
		for _, t := range d.Missing {
			title := matching.Clean(t.Title, matching.FieldTitle)
			for i, c := range d.Extra {
				if used[i] || title == "" || matching.Clean(c.Title, matching.FieldTitle) != title {
					continue
				}
				used[i] = true
				old := t.URI.URI()
				t.URI = models.ResolvedURI(c.URI)
				updated++
				s.logger.Info("updated uri", "track", t.String(), "old", old, "new", c.URI)
				sendProgress(progress, repairUpdate(updated, len(d.Missing), t, old))
				break
			}
		}
	}
	return updated, nil
}

// find resolves a playlist name, falling back to treating nameOrID as an id, URI or URL.
func (s *Syncer) find(ctx context.Context, nameOrID string) (string, string, error) {
	remotes, err := s.remotes(ctx, nil)
	if err != nil {
		return "", "", err
	}
	if p, ok := remotes[strings.ToLower(nameOrID)]; ok {
		return p.ID, p.Name, nil
	}
	if id := services.ParseID(nameOrID); id.Valid() && (id.Type == "" || id.Type == services.TypePlaylist) {
		return id.Value, nameOrID, nil
	}
	return "", "", fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, nameOrID)
}

// Clear removes every track from the named remote playlist and returns how many were removed.
func (s *Syncer) Clear(ctx context.Context, nameOrID string, progress chan<- ProgressUpdate) (int, error) {
	id, name, err := s.find(ctx, nameOrID)
	if err != nil {
		return 0, err
	}

	removed, err := s.svc.ClearTracks(ctx, id, nil)
	if err != nil {
		return removed, fmt.Errorf("failed to clear %s: %w", name, err)
	}
	sendProgress(progress, clearPlaylistUpdate(name, removed))
	return removed, nil
}

// Delete removes the named remote playlist from the user's library.
func (s *Syncer) Delete(ctx context.Context, nameOrID string, progress chan<- ProgressUpdate) error {
	id, name, err := s.find(ctx, nameOrID)
	if err != nil {
		return err
	}

	if err := s.svc.DeletePlaylist(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	sendProgress(progress, deletePlaylistUpdate(name))
	return nil
}
