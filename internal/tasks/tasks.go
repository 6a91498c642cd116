// package tasks implements the sync operations between local m3u playlists and the remote service.
//
// The core abstraction is Resolver, which matches local tracks to remote URIs.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/matching"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

// DefaultSearchLimit is the number of candidates requested per search query.
const DefaultSearchLimit = 10

// Searcher runs free text track searches against the remote service.
type Searcher interface {
	Search(ctx context.Context, query, kind string, limit int) ([]models.RemoteCandidate, error)
}

// Recorder persists the outcome of each resolution attempt.
type Recorder interface {
	Record(ctx context.Context, res *models.Resolution) error
}

// TrackResult is the outcome of resolving a single local track.
type TrackResult struct {
	Playlist   string
	Track      *models.LocalTrack
	Outcome    models.Outcome
	Match      *models.RemoteCandidate // accepted candidate, nil unless strong or weak
	Suggestion *models.RemoteCandidate // nearest rejected candidate of a miss
	Distance   int                     // edit distance of Suggestion
	Error      error
}

// ResolveResult summarizes a resolve run over one or more playlists.
type ResolveResult struct {
	RunID   string
	Results []TrackResult
	Counts  map[models.Outcome]int
}

// Unresolved returns the results of tracks that were searched for and not found, or failed.
func (r *ResolveResult) Unresolved() []TrackResult {
	var out []TrackResult
	for _, res := range r.Results {
		if res.Outcome == models.OutcomeUnavailable || res.Outcome == models.OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// ResolverOpts configures a [Resolver].
type ResolverOpts struct {
	Limit    int      // candidates per query, default [DefaultSearchLimit]
	Recorder Recorder // optional
	Logger   *log.Logger
}

// Resolver matches local tracks to remote tracks through the search API.
type Resolver struct {
	search   Searcher
	recorder Recorder
	limit    int
	logger   *log.Logger
}

// NewResolver creates a Resolver searching with s.
func NewResolver(s Searcher, opts ResolverOpts) *Resolver {
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Resolver{
		search:   s,
		recorder: opts.Recorder,
		limit:    opts.Limit,
		logger:   opts.Logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
		// Sent successfully
	default:
		// Channel full or closed, skip this update
	}
}

// Resolve searches for track and, on a strong or weak match, sets its URI.
//
// Tracks that are already resolved or known to be unavailable are skipped without a request.
// A miss leaves the URI untouched and returns [models.OutcomeUnavailable]; only request
// failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, track *models.LocalTrack) (models.Outcome, error) {
	res := r.resolve(ctx, track)
	return res.Outcome, res.Error
}

func (r *Resolver) resolve(ctx context.Context, track *models.LocalTrack) TrackResult {
	res := TrackResult{Track: track, Outcome: models.OutcomeSkipped}
	if track.URI.Known() {
		return res
	}

	title, artist, album := matching.CleanTrack(track.Title, track.Artist, track.Album)

	fail := func(err error) TrackResult {
		res.Outcome = models.OutcomeFailed
		res.Error = err
		return res
	}

	results, err := r.query(ctx, title, artist)
	if err != nil {
		return fail(err)
	}
	if len(results) == 0 && !strings.HasPrefix(album, "downloads") {
		if results, err = r.query(ctx, title, album); err != nil {
			return fail(err)
		}
	}
	if len(results) == 0 {
		if results, err = r.query(ctx, title); err != nil {
			return fail(err)
		}
	}

	accept := func(m *models.RemoteCandidate, outcome models.Outcome) TrackResult {
		track.URI = models.ResolvedURI(m.URI)
		res.Outcome = outcome
		res.Match = m
		return res
	}

	if m := matching.StrongMatch(track, results); m != nil {
		return accept(m, models.OutcomeStrong)
	}

	titleOnly, err := r.query(ctx, title)
	if err != nil {
		return fail(err)
	}
	if m := matching.StrongMatch(track, titleOnly); m != nil {
		return accept(m, models.OutcomeStrong)
	}

	if m := matching.WeakMatch(track, results, title, artist); m != nil {
		return accept(m, models.OutcomeWeak)
	}
	if m := matching.WeakMatch(track, titleOnly, title, artist); m != nil {
		return accept(m, models.OutcomeWeak)
	}

	res.Outcome = models.OutcomeUnavailable
	res.Suggestion, res.Distance = matching.Nearest(track, append(results, titleOnly...))
	return res
}

// query searches for the non-empty parts joined by spaces. An empty query returns no results
// without a request.
func (r *Resolver) query(ctx context.Context, parts ...string) ([]models.RemoteCandidate, error) {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil, nil
	}

	q := strings.Join(kept, " ")
	results, err := r.search.Search(ctx, q, "track", r.limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q, err)
	}
	r.logger.Debug("searched", "query", q, "results", len(results))
	return results, nil
}

// ResolveAll resolves every track of playlists in order.
//
// A failure on one track is recorded in its result and does not stop the run. A file listed
// in several playlists is searched once. After the pass, tracks that were searched and not
// found are marked [models.Unavailable] so later runs skip them. Only context cancellation
// aborts the run, returning the results so far.
func (r *Resolver) ResolveAll(ctx context.Context, playlists []*models.Playlist, progress chan<- ProgressUpdate) (*ResolveResult, error) {
	result := &ResolveResult{RunID: shared.GenerateID(), Counts: map[models.Outcome]int{}}

	total := 0
	for _, p := range playlists {
		total += len(p.Tracks)
	}

	seen := map[string]*models.LocalTrack{}
	missedPaths := map[string]bool{}
	var missed []*models.LocalTrack
	step := 0

	for _, p := range playlists {
		for _, track := range p.Tracks {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			step++
			sendProgress(progress, resolveTrackUpdate(step, total, p.Name, track))

			var res TrackResult
			if prev, ok := seen[track.Path]; ok && !track.URI.Known() {
				track.URI = prev.URI
				if missedPaths[track.Path] {
					missed = append(missed, track)
				}
				res = TrackResult{Track: track, Outcome: models.OutcomeSkipped}
			} else {
				res = r.resolve(ctx, track)
			}
			res.Playlist = p.Name

			switch res.Outcome {
			case models.OutcomeUnavailable:
				missed = append(missed, track)
				missedPaths[track.Path] = true
			case models.OutcomeFailed:
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				r.logger.Warn("failed to resolve track", "track", track.String(), "error", res.Error)
			}
			if track.Path != "" && res.Outcome != models.OutcomeFailed {
				if _, ok := seen[track.Path]; !ok {
					seen[track.Path] = track
				}
			}

			result.Results = append(result.Results, res)
			result.Counts[res.Outcome]++
			r.record(ctx, result.RunID, res)
			sendProgress(progress, resolvedTrackUpdate(step, total, res))
		}
	}

	for _, track := range missed {
		if !track.URI.Known() {
			track.URI = models.UnavailableURI()
		}
	}

	r.logger.Info("resolve finished",
		"run", result.RunID,
		"strong", result.Counts[models.OutcomeStrong],
		"weak", result.Counts[models.OutcomeWeak],
		"unavailable", result.Counts[models.OutcomeUnavailable],
		"skipped", result.Counts[models.OutcomeSkipped],
		"failed", result.Counts[models.OutcomeFailed],
	)
	return result, nil
}

// record stores res when a [Recorder] is configured. Skipped tracks are not recorded.
func (r *Resolver) record(ctx context.Context, runID string, res TrackResult) {
	if r.recorder == nil || res.Outcome == models.OutcomeSkipped {
		return
	}

	rec := &models.Resolution{
		RunID:    runID,
		Playlist: res.Playlist,
		Path:     res.Track.Path,
		Title:    res.Track.Title,
		Artist:   res.Track.Artist,
		Album:    res.Track.Album,
		Outcome:  res.Outcome,
	}
	if res.Match != nil {
		rec.URI = res.Match.URI
	}
	if res.Error != nil {
		rec.Error = res.Error.Error()
	}

	if err := r.recorder.Record(ctx, rec); err != nil {
		r.logger.Warn("failed to record resolution", "track", res.Track.String(), "error", err)
	}
}
