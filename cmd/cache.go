package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/m3usync/internal/repositories"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) responseCache() (*repositories.ResponseCache, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewResponseCache(db), nil
}

// CacheStats shows how many responses are cached and how many have expired.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.responseCache()
	if err != nil {
		return err
	}
	stats, err := cache.Stats(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Response cache")
	r.writePlain("Entries: %d\n", stats.Total)
	r.writePlain("%s\n", styles.Count("Expired", stats.Expired, styles.Warn))
	r.writePlain("Size:    %.1f KiB\n", float64(stats.Bytes)/1024)
	return nil
}

// CachePurge deletes expired responses.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.responseCache()
	if err != nil {
		return err
	}
	n, err := cache.Purge(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("purged expired responses", "count", n)
	return r.writePlain("%s %d expired responses deleted\n", styles.OK("✓"), n)
}

// CacheClear deletes every cached response.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	cache, err := r.responseCache()
	if err != nil {
		return err
	}
	n, err := cache.Clear(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("cleared response cache", "count", n)
	return r.writePlain("%s %d responses deleted\n", styles.OK("✓"), n)
}

// CachePrune deletes resolution history older than --older-than.
func (r *Runner) CachePrune(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.history()
	if err != nil {
		return err
	}
	n, err := repo.DeleteBefore(ctx, time.Now().Add(-cmd.Duration("older-than")))
	if err != nil {
		return err
	}
	r.logger.Info("pruned resolution history", "count", n)
	return r.writePlain("%s %d resolution records deleted\n", styles.OK("✓"), n)
}

// CacheReset rolls back and reapplies every migration, dropping cached responses and
// resolution history. Requires --yes.
func (r *Runner) CacheReset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to drop the cache and resolution history", shared.ErrInvalidArgument)
	}
	db, err := r.database()
	if err != nil {
		return err
	}

	n, err := shared.ResetDatabase(db)
	if err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	r.logger.Info("reset database schema", "migrations", n)
	return r.writePlain("%s Schema rebuilt, %d migrations reapplied\n", styles.OK("✓"), n)
}
