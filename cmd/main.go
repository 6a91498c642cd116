package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:    "m3usync",
		Usage:   "Sync m3u playlists with Spotify",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file (default: ./config.toml, then the XDG config dir)",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   runner.Before,
		After:    runner.Close,
		Commands: runner.register(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
			os.Exit(0)
		case errors.Is(err, context.Canceled):
			logger.Warn("interrupted")
			os.Exit(130)
		case errors.Is(err, shared.ErrMissingCredentials):
			logger.Fatalf("%v (run 'm3usync setup' and edit the config, or set %s and %s)",
				err, shared.EnvClientID, shared.EnvClientSecret)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
