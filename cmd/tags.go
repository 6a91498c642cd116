package main

import (
	"context"
	"net/http"
	"time"

	"github.com/desertthunder/m3usync/internal/services"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/desertthunder/m3usync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// TagsWrite writes the URI of each resolved track into its file, and optionally embeds
// album artwork.
func (r *Runner) TagsWrite(ctx context.Context, cmd *cli.Command) error {
	playlists, _, err := r.playlists(cmd.String("dir"), cmd.Args().Slice())
	if err != nil {
		return err
	}

	var lookup tasks.TrackLookup
	if cmd.Bool("artwork") {
		var svc services.Service
		if svc, err = r.remote(); err != nil {
			return err
		}
		lookup = svc
	}

	tagger := tasks.NewTagger(lookup, r.writer, shared.WithLogger(r.logger, "component", "tags"))
	opts := tasks.TagOpts{
		NumWorkers: cmd.Int("workers"),
		RateLimit:  cmd.Float("rate"),
		Artwork:    cmd.Bool("artwork"),
		Client:     &http.Client{Timeout: 30 * time.Second},
	}

	progress, stop := r.watch(nil)
	result, err := tagger.Tag(ctx, playlists, opts, progress)
	stop()
	if err != nil {
		return err
	}

	r.writePlainHeader("Tagging complete")
	r.writePlain("%s  %s  %s\n",
		styles.Count("tagged", result.Tagged, styles.OK),
		styles.Count("artwork", result.Artwork, styles.OK),
		styles.Count("failed", result.Failed, styles.Err),
	)
	return nil
}
