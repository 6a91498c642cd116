package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// AppName names the data directory under XDG_DATA_HOME.
const AppName = "m3usync"

// Environment variables that override values from config.toml.
const (
	EnvClientID     = "SPOTIFY_CLIENT_ID"
	EnvClientSecret = "SPOTIFY_CLIENT_SECRET"
	EnvRedirectURI  = "SPOTIFY_REDIRECT_URI"
	EnvDataDir      = "M3USYNC_DATA_DIR"
	EnvPlaylistDir  = "M3USYNC_PLAYLIST_DIR"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Library     LibraryConfig     `toml:"library"`
	Request     RequestConfig     `toml:"request"`
	Auth        AuthConfig        `toml:"auth"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	RedirectURI  string   `toml:"redirect_uri"`
	Scopes       []string `toml:"scopes"`
}

// LibraryConfig locates the local music library and its sidecar files.
type LibraryConfig struct {
	PlaylistDir string `toml:"playlist_dir"`
	DataDir     string `toml:"data_dir"`
	URIFile     string `toml:"uri_file"`
	ReportDir   string `toml:"report_dir"`
}

// RequestConfig tunes the request layer's backoff, rate limiting and response cache.
type RequestConfig struct {
	BackoffStart  float64 `toml:"backoff_start"`
	BackoffFactor float64 `toml:"backoff_factor"`
	BackoffCount  int     `toml:"backoff_count"`
	RateLimit     float64 `toml:"rate_limit"`
	CacheExpiry   string  `toml:"cache_expiry"`
	SearchLimit   int     `toml:"search_limit"`
}

// AuthConfig controls token persistence and validation.
type AuthConfig struct {
	TokenFile       string `toml:"token_file"`
	TestExpiry      int    `toml:"test_expiry"`
	CallbackTimeout int    `toml:"callback_timeout"`
	UserAuth        bool   `toml:"user_auth"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ApplyEnv loads the given dotenv files (missing files are ignored) and overrides
// credentials and paths from the environment.
func (c *Config) ApplyEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	if v := os.Getenv(EnvClientID); v != "" {
		c.Credentials.Spotify.ClientID = v
	}
	if v := os.Getenv(EnvClientSecret); v != "" {
		c.Credentials.Spotify.ClientSecret = v
	}
	if v := os.Getenv(EnvRedirectURI); v != "" {
		c.Credentials.Spotify.RedirectURI = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Library.DataDir = v
	}
	if v := os.Getenv(EnvPlaylistDir); v != "" {
		c.Library.PlaylistDir = v
	}
}

// Validate checks that credentials needed to talk to the remote service are present.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set", ErrMissingCredentials)
	}
	if c.Request.BackoffCount < 0 {
		return fmt.Errorf("%w: backoff_count must not be negative", ErrInvalidConfig)
	}
	if _, err := c.CacheExpiry(); err != nil {
		return err
	}
	return nil
}

// DataDir resolves the data directory, defaulting to $XDG_DATA_HOME/m3usync.
func (c *Config) DataDir() string {
	if c.Library.DataDir != "" {
		return expandHome(c.Library.DataDir)
	}
	return filepath.Join(xdg.DataHome, AppName)
}

// DataPath joins name onto the data directory unless name is already absolute.
func (c *Config) DataPath(name string) string {
	name = expandHome(name)
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.DataDir(), name)
}

// CacheExpiry parses the configured response cache expiry.
func (c *Config) CacheExpiry() (time.Duration, error) {
	if c.Request.CacheExpiry == "" {
		return 4 * 7 * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Request.CacheExpiry)
	if err != nil {
		return 0, fmt.Errorf("%w: cache_expiry: %v", ErrInvalidConfig, err)
	}
	return d, nil
}

// CallbackAddr is the host:port the OAuth callback listener binds to.
func (c *Config) CallbackAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// DefaultConfigPath returns the XDG config location for config.toml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
