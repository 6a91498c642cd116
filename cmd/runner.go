package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/api"
	"github.com/desertthunder/m3usync/internal/auth"
	"github.com/desertthunder/m3usync/internal/library"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/repositories"
	"github.com/desertthunder/m3usync/internal/server"
	"github.com/desertthunder/m3usync/internal/services"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/desertthunder/m3usync/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Authorizer is the token authority as seen by the auth commands.
type Authorizer interface {
	Authorize(ctx context.Context, forceReload, forceNew bool) (http.Header, error)
	Token() *models.Token
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The remote service and the database are opened on first use so that commands like
// setup work without credentials.
type Runner struct {
	config     *shared.Config
	configPath string
	service    services.Service
	authority  Authorizer
	db         *sql.DB
	ownsDB     bool
	loader     *library.Loader
	writer     library.TagWriter
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.Service // built from Config when nil
	Authority  Authorizer
	DB         *sql.DB // opened from Config when nil
	Loader     *library.Loader
	Writer     library.TagWriter
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Loader == nil {
		opts.Loader = library.NewLoader(opts.Logger)
	}
	if opts.Writer == nil {
		opts.Writer = library.Files{ArtworkSize: library.DefaultArtworkSize}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		service:    opts.Service,
		authority:  opts.Authority,
		db:         opts.DB,
		loader:     opts.Loader,
		writer:     opts.Writer,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, searchCommand, syncCommand, reportCommand, tagsCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by --config, applies .env overrides and sets the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		path = defaultConfigPath()
	}
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
	} else {
		r.logger.Debug("config file not found, using defaults", "path", path)
	}
	r.config.ApplyEnv(".env")

	level := shared.ParseLogLevel(r.config.Log.Level)
	if cmd.Bool("verbose") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)

	return ctx, nil
}

// Close releases the database connection opened by [Runner.database].
func (r *Runner) Close(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil || !r.ownsDB {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// defaultConfigPath prefers ./config.toml over the XDG location.
func defaultConfigPath() string {
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}
	return shared.DefaultConfigPath()
}

// database opens the cache database and brings its schema up to date.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	path := r.config.Database.Path
	if path != ":memory:" {
		path = r.config.DataPath(path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.ownsDB = true
	return db, nil
}

// remote returns the remote service, building the request layer and token authority on first use.
func (r *Runner) remote() (services.Service, error) {
	if r.service != nil {
		return r.service, nil
	}
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	expiry, _ := r.config.CacheExpiry()
	var cache api.Cache
	if db, err := r.database(); err != nil {
		r.logger.Warn("response cache unavailable", "error", err)
	} else {
		cache = repositories.NewResponseCache(db)
	}

	spotify := r.config.Credentials.Spotify
	scopes := spotify.Scopes
	if len(scopes) == 0 {
		scopes = services.DefaultScopes
	}

	// the tester only needs the base URL, so an unwired service can serve it
	probe := services.NewSpotifyService(nil, nil, services.SpotifyOpts{Logger: r.logger})

	authority, err := auth.New(auth.Config{
		OAuth: &oauth2.Config{
			ClientID:     spotify.ClientID,
			ClientSecret: spotify.ClientSecret,
			RedirectURL:  spotify.RedirectURI,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   services.SpotifyAuthURL,
				TokenURL:  services.SpotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		UserAuth: r.config.Auth.UserAuth,
		Authorizer: &server.CallbackServer{
			RedirectURL: spotify.RedirectURI,
			Timeout:     time.Duration(r.config.Auth.CallbackTimeout) * time.Second,
			Out:         r.output,
			Logger:      shared.WithLogger(r.logger, "component", "callback"),
		},
		TokenFile:  r.config.DataPath(r.config.Auth.TokenFile),
		TestExpiry: time.Duration(r.config.Auth.TestExpiry) * time.Second,
		Tester:     probe.Tester(r.httpClient),
		Client:     r.httpClient,
		Logger:     shared.WithLogger(r.logger, "component", "auth"),
	})
	if err != nil {
		return nil, err
	}

	req := api.NewRequester(api.RequesterOpts{
		Client:      r.httpClient,
		Headers:     authority,
		Cache:       cache,
		CacheExpiry: expiry,
		Backoff: api.NewBackoff(
			r.config.Request.BackoffStart,
			r.config.Request.BackoffFactor,
			r.config.Request.BackoffCount,
		),
		RateLimit: r.config.Request.RateLimit,
		Logger:    shared.WithLogger(r.logger, "component", "request"),
	})

	r.authority = authority
	r.service = services.NewSpotifyService(req, authority, services.SpotifyOpts{Logger: r.logger})
	return r.service, nil
}

// history returns the resolution history repository.
func (r *Runner) history() (*repositories.ResolutionRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewResolutionRepository(db), nil
}

// uriPath is the location of the URI sidecar file.
func (r *Runner) uriPath() string {
	return r.config.DataPath(r.config.Library.URIFile)
}

// playlists loads the playlists of the library, keeping those named in names (all when empty),
// and fills in URIs known from the sidecar file.
func (r *Runner) playlists(dir string, names []string) ([]*models.Playlist, *library.URIStore, error) {
	if dir == "" {
		dir = r.config.Library.PlaylistDir
	}
	if dir == "" {
		return nil, nil, fmt.Errorf("%w: playlist directory", shared.ErrMissingArgument)
	}

	all, err := r.loader.LoadPlaylists(dir)
	if err != nil {
		return nil, nil, err
	}

	playlists := all
	if len(names) > 0 {
		playlists = nil
		for _, name := range names {
			found := false
			for _, p := range all {
				if strings.EqualFold(p.Name, name) {
					playlists = append(playlists, p)
					found = true
				}
			}
			if !found {
				return nil, nil, fmt.Errorf("%w: no local playlist named %q", shared.ErrPlaylistNotFound, name)
			}
		}
	}

	store, err := library.LoadURIs(r.uriPath())
	if err != nil {
		return nil, nil, err
	}
	n := store.Apply(playlists...)
	r.logger.Debug("loaded playlists", "dir", dir, "count", len(playlists), "known_uris", n)

	return playlists, store, nil
}

// saveURIs records the URIs of playlists in store and writes it to the sidecar file.
func (r *Runner) saveURIs(store *library.URIStore, playlists []*models.Playlist) error {
	store.Update(playlists...)
	if err := store.Save(r.uriPath()); err != nil {
		return fmt.Errorf("failed to save uris: %w", err)
	}
	r.logger.Debug("saved uris", "path", r.uriPath(), "albums", store.Len())
	return nil
}

// watch prints progress updates until the returned stop function is called.
// render formats an update, returning "" to hide it; nil prints each update's message.
func (r *Runner) watch(render func(tasks.ProgressUpdate) string) (chan tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			line := update.Message
			if render != nil {
				line = render(update)
			}
			if line != "" {
				r.writePlain("%s\n", line)
			}
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", styles.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
