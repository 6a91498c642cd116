package tasks

import (
	"fmt"

	"github.com/desertthunder/m3usync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolveTracks Phase = iota
	FetchRemote
	PushPlaylist
	Compare
	RepairURIs
	ClearPlaylist
	DeletePlaylist
	FetchArtwork
	WriteTags
)

func (p Phase) String() string {
	switch p {
	case ResolveTracks:
		return "resolve_tracks"
	case FetchRemote:
		return "fetch_remote"
	case PushPlaylist:
		return "push_playlist"
	case Compare:
		return "compare"
	case RepairURIs:
		return "repair_uris"
	case ClearPlaylist:
		return "clear_playlist"
	case DeletePlaylist:
		return "delete_playlist"
	case FetchArtwork:
		return "fetch_artwork"
	case WriteTags:
		return "write_tags"
	default:
		return ""
	}
}

func resolveTrackUpdate(step, total int, playlist string, tr *models.LocalTrack) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s - %s", step, total, playlist, tr.Artist, tr.Title),
	}
}

func resolvedTrackUpdate(step, total int, res TrackResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, res.Outcome, res.Track),
		Data:    res,
	}
}

func fetchRemoteUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRemote,
		Step:    step,
		Total:   total,
		Message: "Fetching remote playlists...",
	}
}

func pushPlaylistUpdate(step, total int, res PushedPlaylist) ProgressUpdate {
	verb := "Updated"
	if res.Created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   PushPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s (%d added)", step, total, verb, res.Name, res.Added),
		Data:    res,
	}
}

func compareUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Comparing %s...", step, total, name),
	}
}

func repairUpdate(step, total int, tr *models.LocalTrack, old string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RepairURIs,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s: %s → %s", tr, old, tr.URI),
	}
}

func clearPlaylistUpdate(name string, removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClearPlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Cleared %s (%d removed)", name, removed),
	}
}

func deletePlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DeletePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Deleted %s", name),
	}
}

func fetchArtworkUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchArtwork,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Looking up artwork for %d tracks...", total),
	}
}

func tagCompletedUpdate(step, total int, res TagFileResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s", step, total, res.Path)
	if res.Artwork {
		msg += " (artwork)"
	}
	return ProgressUpdate{Phase: WriteTags, Step: step, Total: total, Message: msg, Data: res}
}

func tagFailedUpdate(step, total int, res TagFileResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTags,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Path, res.Error),
		Data:    res,
	}
}
