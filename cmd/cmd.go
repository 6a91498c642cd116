// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/desertthunder/m3usync/internal/formatter"
	"github.com/urfave/cli/v3"
)

func dirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		Usage:   "Directory holding .m3u playlists (default: library.playlist_dir)",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Report format: csv, markdown, txt or json",
		Value:   string(formatter.FormatCSV),
	}
}

func outFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "Write the report to this directory, \"-\" for library.report_dir (default: print it)",
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
		},
	}
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the cache database",
		Action: r.Setup,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify access token",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Request a new access token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Validate the saved token and show the authorised user",
				Flags:  jsonFlags(),
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the saved token",
				Action: r.AuthLogout,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search Spotify for tracks",
		ArgsUsage: "<query>",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results",
				Value:   10,
			},
		}, jsonFlags()...),
		Action: r.Search,
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize local playlists with Spotify",
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Match local tracks to Spotify tracks and save their URIs",
				ArgsUsage: "[playlist...]",
				Flags: []cli.Flag{
					dirFlag(),
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Search without saving the URIs",
					},
				},
				Action: r.SyncResolve,
			},
			{
				Name:      "push",
				Usage:     "Create or extend the Spotify playlist of each local playlist",
				ArgsUsage: "[playlist...]",
				Flags: []cli.Flag{
					dirFlag(),
					&cli.BoolFlag{
						Name:  "resolve",
						Usage: "Resolve unknown tracks before pushing",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Create new playlists as public",
					},
				},
				Action: r.SyncPush,
			},
			{
				Name:      "diff",
				Usage:     "Show tracks missing from or extra to each Spotify playlist",
				ArgsUsage: "[playlist...]",
				Flags:     append([]cli.Flag{dirFlag()}, jsonFlags()...),
				Action:    r.SyncDiff,
			},
			{
				Name:      "repair",
				Usage:     "Re-point local URIs that Spotify has relinked",
				ArgsUsage: "[playlist...]",
				Flags:     []cli.Flag{dirFlag()},
				Action:    r.SyncRepair,
			},
			{
				Name:   "playlists",
				Usage:  "List Spotify playlists",
				Flags:  jsonFlags(),
				Action: r.SyncPlaylists,
			},
			{
				Name:      "clear",
				Usage:     "Remove every track from a Spotify playlist",
				ArgsUsage: "<name|id|uri|url>",
				Action:    r.SyncClear,
			},
			{
				Name:      "delete",
				Usage:     "Delete a Spotify playlist",
				ArgsUsage: "<name|id|uri|url>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Confirm the deletion",
					},
				},
				Action: r.SyncDelete,
			},
		},
	}
}

func reportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export reports",
		Commands: []*cli.Command{
			{
				Name:      "unresolved",
				Usage:     "Tracks without a Spotify URI",
				ArgsUsage: "[playlist...]",
				Flags: []cli.Flag{
					dirFlag(), formatFlag(), outFlag(),
					&cli.BoolFlag{
						Name:  "m3u",
						Usage: "Write an m3u playlist of the unresolved tracks of each playlist",
					},
				},
				Action: r.ReportUnresolved,
			},
			{
				Name:      "differences",
				Aliases:   []string{"diff"},
				Usage:     "Differences between local and Spotify playlists",
				ArgsUsage: "[playlist...]",
				Flags:     []cli.Flag{dirFlag(), formatFlag(), outFlag()},
				Action:    r.ReportDifferences,
			},
			{
				Name:  "history",
				Usage: "Outcomes recorded by resolve runs",
				Flags: []cli.Flag{
					formatFlag(),
					outFlag(),
					&cli.StringFlag{
						Name:  "run",
						Usage: "Run id (default: latest run)",
					},
					&cli.StringFlag{
						Name:  "outcome",
						Usage: "Only this outcome across all runs: strong, weak, unavailable or failed",
					},
				},
				Action: r.ReportHistory,
			},
		},
	}
}

func tagsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Write resolved URIs into audio file tags",
		Commands: []*cli.Command{
			{
				Name:      "write",
				Usage:     "Tag the files of resolved tracks",
				ArgsUsage: "[playlist...]",
				Flags: []cli.Flag{
					dirFlag(),
					&cli.BoolFlag{
						Name:  "artwork",
						Usage: "Embed album artwork into files that have none",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent workers",
						Value: 4,
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Artwork downloads per second",
						Value: 5,
					},
				},
				Action: r.TagsWrite,
			},
		},
	}
}

func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and clean the response cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache entry counts",
				Flags:  jsonFlags(),
				Action: r.CacheStats,
			},
			{
				Name:   "purge",
				Usage:  "Delete expired responses",
				Action: r.CachePurge,
			},
			{
				Name:   "clear",
				Usage:  "Delete every cached response",
				Action: r.CacheClear,
			},
			{
				Name:  "prune",
				Usage: "Delete resolution history older than a duration",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Age of the records to delete",
						Value: 90 * 24 * time.Hour,
					},
				},
				Action: r.CachePrune,
			},
			{
				Name:  "reset",
				Usage: "Drop and recreate the cache and resolution history tables",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Confirm the reset",
					},
				},
				Action: r.CacheReset,
			},
		},
	}
}
