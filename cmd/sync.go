package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/services"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/desertthunder/m3usync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// renderResolve shows searched tracks and hides skipped ones.
func renderResolve(u tasks.ProgressUpdate) string {
	res, ok := u.Data.(tasks.TrackResult)
	if !ok || res.Outcome == models.OutcomeSkipped {
		return ""
	}
	line := fmt.Sprintf("[%d/%d] %-11s %s", u.Step, u.Total, styles.Outcome(res.Outcome), res.Track)
	if res.Match != nil {
		line += " " + styles.Help(res.Match.URI)
	}
	return line
}

// resolve runs the resolver over playlists, recording outcomes in the history when the
// database is available.
func (r *Runner) resolve(ctx context.Context, svc services.Service, playlists []*models.Playlist) (*tasks.ResolveResult, error) {
	opts := tasks.ResolverOpts{
		Limit:  r.config.Request.SearchLimit,
		Logger: shared.WithLogger(r.logger, "component", "resolver"),
	}
	if repo, err := r.history(); err != nil {
		r.logger.Warn("resolution history unavailable", "error", err)
	} else {
		opts.Recorder = repo
	}

	progress, stop := r.watch(renderResolve)
	result, err := tasks.NewResolver(svc, opts).ResolveAll(ctx, playlists, progress)
	stop()
	return result, err
}

func (r *Runner) writeResolveSummary(result *tasks.ResolveResult) {
	r.writePlainln("%s", styles.Title("Resolve complete"))
	r.writePlain("%s  %s  %s  %s  %s\n",
		styles.Count("strong", result.Counts[models.OutcomeStrong], styles.OK),
		styles.Count("weak", result.Counts[models.OutcomeWeak], styles.Warn),
		styles.Count("unavailable", result.Counts[models.OutcomeUnavailable], styles.Err),
		styles.Count("failed", result.Counts[models.OutcomeFailed], styles.Err),
		styles.Count("skipped", result.Counts[models.OutcomeSkipped], styles.Help),
	)

	unresolved := result.Unresolved()
	if len(unresolved) == 0 {
		return
	}
	r.writePlain("\nNot found:\n")
	for _, res := range unresolved {
		r.writePlain("  - %s: %s", res.Playlist, res.Track)
		if res.Error != nil {
			r.writePlain(" %s", styles.Err(res.Error.Error()))
		} else if res.Suggestion != nil {
			r.writePlain(" %s", styles.Help(fmt.Sprintf("(closest: %s - %s, %s)",
				strings.Join(res.Suggestion.Artists, ", "), res.Suggestion.Title, res.Suggestion.URI)))
		}
		r.writePlain("\n")
	}
}

// SyncResolve resolves the URIs of local tracks and saves them to the sidecar file.
func (r *Runner) SyncResolve(ctx context.Context, cmd *cli.Command) error {
	playlists, store, err := r.playlists(cmd.String("dir"), cmd.Args().Slice())
	if err != nil {
		return err
	}
	svc, err := r.remote()
	if err != nil {
		return err
	}

	result, err := r.resolve(ctx, svc, playlists)
	if result != nil && !cmd.Bool("dry-run") {
		if saveErr := r.saveURIs(store, playlists); saveErr != nil {
			return saveErr
		}
	}
	if err != nil {
		return err
	}

	r.writeResolveSummary(result)
	r.writePlain("%s\n", styles.Help("run "+result.RunID))
	return nil
}

// SyncPush pushes the resolved tracks of each local playlist to Spotify.
func (r *Runner) SyncPush(ctx context.Context, cmd *cli.Command) error {
	playlists, store, err := r.playlists(cmd.String("dir"), cmd.Args().Slice())
	if err != nil {
		return err
	}
	svc, err := r.remote()
	if err != nil {
		return err
	}

	if cmd.Bool("resolve") {
		result, err := r.resolve(ctx, svc, playlists)
		if result != nil {
			if saveErr := r.saveURIs(store, playlists); saveErr != nil {
				return saveErr
			}
		}
		if err != nil {
			return err
		}
		r.writeResolveSummary(result)
		r.writePlain("\n")
	}

	syncer := tasks.NewSyncer(svc, shared.WithLogger(r.logger, "component", "sync"))
	syncer.Public = cmd.Bool("public")

	progress, stop := r.watch(nil)
	result, err := syncer.Push(ctx, playlists, progress)
	stop()
	if err != nil {
		return err
	}

	r.writePlainHeader("Push complete")
	for _, p := range result.Playlists {
		switch {
		case p.Skipped:
			r.writePlain("%s %s %s\n", styles.Warn("-"), p.Name, styles.Help("(no resolved tracks)"))
		case p.Created:
			r.writePlain("%s %s created, %d added %s\n", styles.OK("+"), p.Name, p.Added, styles.Help(p.URL))
		default:
			r.writePlain("%s %s %d added %s\n", styles.OK("✓"), p.Name, p.Added, styles.Help(p.URL))
		}
	}
	r.writePlain("\n%d playlists created, %d tracks added\n", result.Created, result.Added)
	return nil
}

// SyncDiff lists the differences between local playlists and their Spotify counterparts.
func (r *Runner) SyncDiff(ctx context.Context, cmd *cli.Command) error {
	diffs, err := r.differences(ctx, cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(diffs, cmd.Bool("pretty"))
	}

	if len(diffs) == 0 {
		return r.writePlain("%s\n", styles.Help("No local playlist has a Spotify counterpart"))
	}
	for _, d := range diffs {
		r.writePlainHeader(d.Playlist)
		if d.Empty() {
			r.writePlain("%s In sync\n", styles.OK("✓"))
			continue
		}
		if len(d.Missing) > 0 {
			r.writePlain("Missing from Spotify (%d):\n", len(d.Missing))
			for i, t := range d.Missing {
				r.writePlain("  %d. %s %s\n", i+1, t, styles.Help(t.URI.URI()))
			}
		}
		if len(d.Extra) > 0 {
			r.writePlain("Only on Spotify (%d):\n", len(d.Extra))
			for i, c := range d.Extra {
				r.writePlain("  %d. %s - %s %s\n", i+1, strings.Join(c.Artists, ", "), c.Title, styles.Help(c.URI))
			}
		}
	}
	return nil
}

func (r *Runner) differences(ctx context.Context, cmd *cli.Command) ([]models.Difference, error) {
	playlists, _, err := r.playlists(cmd.String("dir"), cmd.Args().Slice())
	if err != nil {
		return nil, err
	}
	svc, err := r.remote()
	if err != nil {
		return nil, err
	}

	progress, stop := r.watch(func(u tasks.ProgressUpdate) string {
		if u.Phase == tasks.FetchRemote {
			return u.Message
		}
		return ""
	})
	defer stop()
	return tasks.NewSyncer(svc, r.logger).Differences(ctx, playlists, progress)
}

// SyncRepair re-points local URIs missing from the Spotify playlist to a title match there.
func (r *Runner) SyncRepair(ctx context.Context, cmd *cli.Command) error {
	playlists, store, err := r.playlists(cmd.String("dir"), cmd.Args().Slice())
	if err != nil {
		return err
	}
	svc, err := r.remote()
	if err != nil {
		return err
	}

	progress, stop := r.watch(func(u tasks.ProgressUpdate) string {
		if u.Phase == tasks.RepairURIs {
			return styles.OK("✓ ") + u.Message
		}
		return ""
	})
	n, err := tasks.NewSyncer(svc, r.logger).UpdateURIs(ctx, playlists, progress)
	stop()
	if err != nil {
		return err
	}

	if n > 0 {
		if err := r.saveURIs(store, playlists); err != nil {
			return err
		}
	}
	return r.writePlainln("%d URIs updated", n)
}

// SyncPlaylists lists the authorised user's Spotify playlists.
func (r *Runner) SyncPlaylists(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.remote()
	if err != nil {
		return err
	}

	playlists, err := svc.Playlists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%d playlists", len(playlists)))
	for _, p := range playlists {
		r.writePlain("%-40s %4d tracks  %s\n", p.Name, p.TrackCount, styles.Help(p.ID))
	}
	return nil
}

// SyncClear removes every track from a Spotify playlist.
func (r *Runner) SyncClear(ctx context.Context, cmd *cli.Command) error {
	target := strings.TrimSpace(cmd.Args().First())
	if target == "" {
		return fmt.Errorf("%w: playlist name or id", shared.ErrMissingArgument)
	}
	svc, err := r.remote()
	if err != nil {
		return err
	}

	progress, stop := r.watch(nil)
	_, err = tasks.NewSyncer(svc, r.logger).Clear(ctx, target, progress)
	stop()
	return err
}

// SyncDelete deletes a Spotify playlist. Requires --yes.
func (r *Runner) SyncDelete(ctx context.Context, cmd *cli.Command) error {
	target := strings.TrimSpace(cmd.Args().First())
	if target == "" {
		return fmt.Errorf("%w: playlist name or id", shared.ErrMissingArgument)
	}
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to delete %q", shared.ErrInvalidArgument, target)
	}
	svc, err := r.remote()
	if err != nil {
		return err
	}

	progress, stop := r.watch(nil)
	err = tasks.NewSyncer(svc, r.logger).Delete(ctx, target, progress)
	stop()
	return err
}
