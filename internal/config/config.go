// Package config loads runtime configuration from an optional .env file,
// environment variables, and an optional config file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/collectarr/collectarr/internal/log"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	Jellyfin struct {
		URL    string
		APIKey string
	}
	TMDB struct {
		APIKey   string
		Language string
	}
	Jellyseerr struct {
		URL    string
		APIKey string
	}

	// Run modes. Dry-run and offline both default to on: the tool never
	// mutates anything unless explicitly told to.
	DryRun   bool
	Offline  bool
	Requests bool

	CacheDir     string
	SnapshotPath string

	Logging log.Config
}

// Load reads configuration. A .env file in the working directory is loaded
// first (missing is fine), then environment variables, then an optional
// collectarr config file.
func Load() (*Config, error) {
	// Populate the process environment the way earlier iterations did.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("collectarr")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/collectarr")

	v.SetDefault("tmdb.language", "en-US")
	v.SetDefault("dry_run", true)
	v.SetDefault("offline", true)
	v.SetDefault("requests", false)
	v.SetDefault("cache_dir", "metadata")
	v.SetDefault("snapshot_path", "metadata/collections.json")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("logging.level", "info")

	bindings := [][2]string{
		{"jellyfin.url", "JELLYFIN_URL"},
		{"jellyfin.api_key", "JELLYFIN_API_KEY"},
		{"tmdb.api_key", "TMDB_API_KEY"},
		{"tmdb.language", "TMDB_LANGUAGE"},
		{"jellyseerr.url", "JELLYSEERR_URL"},
		{"jellyseerr.api_key", "JELLYSEERR_API_KEY"},
		{"cache_dir", "COLLECTARR_CACHE_DIR"},
		{"snapshot_path", "COLLECTARR_SNAPSHOT"},
		{"logging.dir", "COLLECTARR_LOG_DIR"},
		{"logging.level", "COLLECTARR_LOG_LEVEL"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	cfg.Jellyfin.URL = strings.TrimRight(v.GetString("jellyfin.url"), "/")
	cfg.Jellyfin.APIKey = v.GetString("jellyfin.api_key")
	cfg.TMDB.APIKey = v.GetString("tmdb.api_key")
	cfg.TMDB.Language = v.GetString("tmdb.language")
	cfg.Jellyseerr.URL = strings.TrimRight(v.GetString("jellyseerr.url"), "/")
	cfg.Jellyseerr.APIKey = v.GetString("jellyseerr.api_key")
	cfg.DryRun = v.GetBool("dry_run")
	cfg.Offline = v.GetBool("offline")
	cfg.Requests = v.GetBool("requests")
	cfg.CacheDir = v.GetString("cache_dir")
	cfg.SnapshotPath = v.GetString("snapshot_path")
	cfg.Logging.Dir = v.GetString("logging.dir")
	cfg.Logging.Level = v.GetString("logging.level")

	return cfg, nil
}

// Validate checks the fatal preconditions: the media server credentials are
// always required, and online mode additionally requires a TMDb key.
func (c *Config) Validate() error {
	if c.Jellyfin.URL == "" || c.Jellyfin.APIKey == "" {
		return fmt.Errorf("JELLYFIN_URL and JELLYFIN_API_KEY are required")
	}
	if !c.Offline && c.TMDB.APIKey == "" {
		return fmt.Errorf("TMDB_API_KEY is required in online mode")
	}
	return nil
}

// RequestsEnabled reports whether request submission is usable: the flag is
// on and the request service is configured. A set flag without credentials
// silently disables requests, matching the tool's historical behavior.
func (c *Config) RequestsEnabled() bool {
	return c.Requests && c.Jellyseerr.URL != "" && c.Jellyseerr.APIKey != ""
}
