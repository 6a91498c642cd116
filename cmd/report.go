package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/m3usync/internal/formatter"
	"github.com/desertthunder/m3usync/internal/library"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/urfave/cli/v3"
)

// emit prints a report, or writes it to the --out directory. An --out of "-" uses the
// configured report directory.
func (r *Runner) emit(cmd *cli.Command, name string, format formatter.Format, data []byte) error {
	out := cmd.String("out")
	if out == "" {
		_, err := r.output.Write(data)
		if err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if out == "-" {
		out = r.config.DataPath(r.config.Library.ReportDir)
	}

	path, err := formatter.WriteReport(out, name, format, data)
	if err != nil {
		return err
	}
	r.logger.Info("report written", "path", path)
	return r.writePlain("%s Report saved to %s\n", styles.OK("✓"), path)
}

// ReportUnresolved exports the tracks of local playlists that have no URI. With --m3u it
// writes them as one playlist per local playlist instead.
func (r *Runner) ReportUnresolved(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	playlists, _, err := r.playlists(cmd.String("dir"), cmd.Args().Slice())
	if err != nil {
		return err
	}
	if cmd.Bool("m3u") {
		return r.writeUnresolvedPlaylists(cmd.String("out"), playlists)
	}

	data, err := formatter.Unresolved(playlists, format)
	if err != nil {
		return err
	}
	return r.emit(cmd, "unresolved", format, data)
}

// writeUnresolvedPlaylists writes "<name>-unresolved.m3u" for every playlist with tracks
// that have no URI. An empty or "-" dir uses the configured report directory.
func (r *Runner) writeUnresolvedPlaylists(dir string, playlists []*models.Playlist) error {
	if dir == "" || dir == "-" {
		dir = r.config.DataPath(r.config.Library.ReportDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	written := 0
	for _, p := range playlists {
		missing := &models.Playlist{Name: p.Name}
		for _, t := range p.Tracks {
			if t.URI.Status() != models.Resolved {
				missing.Tracks = append(missing.Tracks, t)
			}
		}
		if len(missing.Tracks) == 0 {
			continue
		}

		path := filepath.Join(dir, shared.Slugify(p.Name)+"-unresolved.m3u")
		if err := library.WritePlaylist(path, missing); err != nil {
			return err
		}
		written++
		r.logger.Info("playlist written", "path", path, "tracks", len(missing.Tracks))
		r.writePlain("%s %s %s\n", styles.OK("✓"), path, styles.Help(fmt.Sprintf("(%d tracks)", len(missing.Tracks))))
	}

	if written == 0 {
		return r.writePlain("%s\n", styles.Help("Every track has a URI"))
	}
	return nil
}

// ReportDifferences exports the differences between local and Spotify playlists.
func (r *Runner) ReportDifferences(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	diffs, err := r.differences(ctx, cmd)
	if err != nil {
		return err
	}

	data, err := formatter.Differences(diffs, format)
	if err != nil {
		return err
	}
	return r.emit(cmd, "differences", format, data)
}

// ReportHistory exports recorded resolution outcomes, for one run or one outcome.
func (r *Runner) ReportHistory(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	repo, err := r.history()
	if err != nil {
		return err
	}

	var records []*models.Resolution
	name := "history"
	if outcome := cmd.String("outcome"); outcome != "" {
		switch o := models.Outcome(outcome); o {
		case models.OutcomeStrong, models.OutcomeWeak, models.OutcomeUnavailable, models.OutcomeFailed:
			records, err = repo.ListByOutcome(ctx, o)
			name += "-" + outcome
		default:
			return fmt.Errorf("%w: outcome %q", shared.ErrInvalidArgument, outcome)
		}
	} else {
		run := cmd.String("run")
		if run == "" {
			if run, err = repo.LatestRun(ctx); err != nil {
				return err
			}
		}
		if run == "" {
			return r.writePlain("%s\n", styles.Help("No resolve runs recorded"))
		}
		records, err = repo.ListByRun(ctx, run)
		name += "-" + run
	}
	if err != nil {
		return err
	}

	data, err := formatter.Resolutions(records, format)
	if err != nil {
		return err
	}
	return r.emit(cmd, name, format, data)
}
