// package services defines interface Service for interacting with remote music services
package services

import (
	"context"

	"github.com/desertthunder/m3usync/internal/models"
)

// Service defines the remote operations used to resolve and sync playlists.
type Service interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// Search runs a free text query for items of kind and returns up to limit typed results.
	Search(ctx context.Context, query, kind string, limit int) ([]models.RemoteCandidate, error)

	// Tracks looks up tracks by id or URI, batching as the service allows.
	Tracks(ctx context.Context, ids []string) ([]models.RemoteCandidate, error)

	// Playlists returns every playlist of the authorised user, without tracks.
	Playlists(ctx context.Context) ([]models.RemotePlaylist, error)

	// Playlist returns a playlist by id, URI or URL with all of its tracks.
	Playlist(ctx context.Context, id string) (*models.RemotePlaylist, error)

	// CreatePlaylist creates a playlist owned by the authorised user.
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.RemotePlaylist, error)

	// AddTracks appends uris to a playlist, optionally skipping those already present.
	// Returns the number of tracks added.
	AddTracks(ctx context.Context, playlistID string, uris []string, skipDupes bool) (int, error)

	// ClearTracks removes uris from a playlist, or every track when uris is nil.
	// Returns the number of tracks removed.
	ClearTracks(ctx context.Context, playlistID string, uris []string) (int, error)

	// DeletePlaylist unfollows a playlist, which deletes it for its owner.
	DeletePlaylist(ctx context.Context, playlistID string) error
}
