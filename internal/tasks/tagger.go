package tasks

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/formatter"
	"github.com/desertthunder/m3usync/internal/library"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	"golang.org/x/time/rate"
)

// TrackLookup fetches remote tracks by URI, used to find artwork.
type TrackLookup interface {
	Tracks(ctx context.Context, ids []string) ([]models.RemoteCandidate, error)
}

// TagOpts contains configuration for writing tags.
type TagOpts struct {
	NumWorkers int          // Concurrent workers (default: 4)
	RateLimit  float64      // Artwork downloads per second (default: 5)
	Artwork    bool         // Embed artwork into files that have none
	Client     *http.Client // Used for artwork downloads
}

// TagFileResult is the outcome of tagging one file.
type TagFileResult struct {
	Path    string
	URI     string
	Artwork bool
	Error   error
}

// TagResult summarizes a tagging run.
type TagResult struct {
	Total   int
	Tagged  int
	Artwork int
	Failed  int
	Results []TagFileResult
}

type tagJob struct {
	track    *models.LocalTrack
	imageURL string
}

// Tagger writes resolved URIs, and optionally album artwork, into audio files.
type Tagger struct {
	lookup TrackLookup
	writer library.TagWriter
	logger *log.Logger
}

// NewTagger creates a Tagger. lookup may be nil when artwork is not wanted.
func NewTagger(lookup TrackLookup, writer library.TagWriter, logger *log.Logger) *Tagger {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Tagger{lookup: lookup, writer: writer, logger: logger}
}

// Tag writes the URI of every resolved track of playlists into its file, once per file.
//
// Files are tagged by a worker pool; artwork downloads are rate limited. A failure on one file
// is recorded in its result and does not stop the run.
func (tg *Tagger) Tag(ctx context.Context, playlists []*models.Playlist, opts TagOpts, progress chan<- ProgressUpdate) (*TagResult, error) {
	if tg.writer == nil {
		return nil, fmt.Errorf("%w: tag writer not initialized", shared.ErrInvalidConfig)
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}

	tracks := uniqueResolved(playlists)
	result := &TagResult{Total: len(tracks), Results: make([]TagFileResult, 0, len(tracks))}
	if len(tracks) == 0 {
		return result, nil
	}

	images := map[string]string{}
	if opts.Artwork && tg.lookup != nil {
		var err error
		if images, err = tg.artwork(ctx, tracks, progress); err != nil {
			tg.logger.Warn("artwork lookup failed, writing URIs only", "error", err)
			images = map[string]string{}
		}
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan tagJob, len(tracks))
	results := make(chan TagFileResult, len(tracks))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go tg.worker(ctx, &wg, jobs, results, limiter, opts.Client)
	}

	go func() {
		defer close(jobs)
		for _, t := range tracks {
			select {
			case <-ctx.Done():
				return
			case jobs <- tagJob{track: t, imageURL: images[t.URI.URI()]}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error != nil {
			result.Failed++
			tg.logger.Warn("failed to tag file", "path", res.Path, "error", res.Error)
			sendProgress(progress, tagFailedUpdate(completed, len(tracks), res))
			continue
		}
		result.Tagged++
		if res.Artwork {
			result.Artwork++
		}
		sendProgress(progress, tagCompletedUpdate(completed, len(tracks), res))
	}

	sort.Slice(result.Results, func(i, j int) bool { return result.Results[i].Path < result.Results[j].Path })
	return result, ctx.Err()
}

// worker tags files from the jobs channel.
func (tg *Tagger) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan tagJob,
	results chan<- TagFileResult,
	limiter *rate.Limiter,
	client *http.Client,
) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		results <- tg.tagFile(ctx, job, limiter, client)
	}
}

func (tg *Tagger) tagFile(ctx context.Context, j tagJob, limiter *rate.Limiter, client *http.Client) TagFileResult {
	res := TagFileResult{Path: j.track.Path, URI: j.track.URI.URI()}

	if err := tg.writer.WriteURI(j.track.Path, j.track.URI); err != nil {
		res.Error = err
		return res
	}

	if j.imageURL == "" {
		return res
	}

	if err := limiter.Wait(ctx); err != nil {
		res.Error = err
		return res
	}
	data, err := formatter.DownloadImage(ctx, client, j.imageURL)
	if err != nil {
		res.Error = fmt.Errorf("artwork: %w", err)
		return res
	}
	if err := tg.writer.EmbedArtwork(j.track.Path, data); err != nil {
		res.Error = fmt.Errorf("artwork: %w", err)
		return res
	}
	j.track.HasArtwork = true
	res.Artwork = true
	return res
}

// artwork looks up the largest album image of each resolved track that has no artwork.
func (tg *Tagger) artwork(ctx context.Context, tracks []*models.LocalTrack, progress chan<- ProgressUpdate) (map[string]string, error) {
	var uris []string
	for _, t := range tracks {
		if !t.HasArtwork {
			uris = append(uris, t.URI.URI())
		}
	}
	if len(uris) == 0 {
		return map[string]string{}, nil
	}

	sendProgress(progress, fetchArtworkUpdate(len(uris)))
	found, err := tg.lookup.Tracks(ctx, uris)
	if err != nil {
		return nil, err
	}

	images := make(map[string]string, len(found))
	for _, c := range found {
		if c.ImageURL != "" {
			images[c.URI] = c.ImageURL
		}
	}
	return images, nil
}

// uniqueResolved returns the resolved tracks of playlists, one per file path, in playlist order.
func uniqueResolved(playlists []*models.Playlist) []*models.LocalTrack {
	seen := map[string]bool{}
	var out []*models.LocalTrack
	for _, p := range playlists {
		for _, t := range p.Tracks {
			if t.URI.Status() != models.Resolved || t.Path == "" || seen[t.Path] {
				continue
			}
			seen[t.Path] = true
			out = append(out, t)
		}
	}
	return out
}
