package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search runs a free text track search and lists the candidates.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}

	svc, err := r.remote()
	if err != nil {
		return err
	}

	r.logger.Debug("searching", "query", query, "limit", cmd.Int("limit"))
	results, err := svc.Search(ctx, query, "track", cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, cmd.Bool("pretty"))
	}

	if len(results) == 0 {
		return r.writePlain("%s\n", styles.Warn("No results"))
	}
	for i, c := range results {
		r.writePlain("%2d. %s - %s\n", i+1, strings.Join(c.Artists, ", "), styles.Title(c.Title))
		r.writePlain("    %s (%s) %s %s\n", c.AlbumName, c.AlbumReleaseDate, shared.FormatDuration(c.Duration()), styles.Help(c.URI))
	}
	return nil
}
