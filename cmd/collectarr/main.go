package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	applog "github.com/collectarr/collectarr/internal/log"

	"github.com/collectarr/collectarr/internal/adapter/jellyfin"
	"github.com/collectarr/collectarr/internal/adapter/jellyseerr"
	"github.com/collectarr/collectarr/internal/adapter/tmdb"
	"github.com/collectarr/collectarr/internal/app"
	"github.com/collectarr/collectarr/internal/config"
	"github.com/collectarr/collectarr/internal/display"
	"github.com/collectarr/collectarr/internal/domain"
	"github.com/collectarr/collectarr/internal/reconciler"
	"github.com/collectarr/collectarr/internal/resolver"
	"github.com/collectarr/collectarr/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")

	dryRun := flag.Bool("dry-run", true, "perform checks only, mutate nothing (default)")
	offline := flag.Bool("offline", true, "build collections from the local snapshot instead of the TMDb API")
	requests := flag.Bool("requests", false, "request missing movies through Jellyseerr")
	flag.Parse()

	if showVersion {
		fmt.Printf("collectarr %s\n", Version)
		return
	}

	if err := run(*dryRun, *offline, *requests); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dryRun, offline, requests bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Flags override config defaults when explicitly set.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dry-run":
			cfg.DryRun = dryRun
		case "offline":
			cfg.Offline = offline
		case "requests":
			cfg.Requests = requests
		}
	})

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logPath, err := applog.Setup(cfg.Logging)
	if err != nil {
		logger = applog.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("starting collectarr", "version", Version)

	cache, err := store.Open(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to open metadata cache: %w", err)
	}
	defer cache.Close()

	server := jellyfin.NewClient(cfg.Jellyfin.URL, cfg.Jellyfin.APIKey, cfg.DryRun, logger)

	var metadata domain.MetadataSource
	if !cfg.Offline {
		metadata = tmdb.NewClient(tmdb.Config{
			APIKey:   cfg.TMDB.APIKey,
			Language: cfg.TMDB.Language,
		}, cache, logger)
	}

	var requester domain.Requester
	if cfg.RequestsEnabled() {
		requester = jellyseerr.NewClient(cfg.Jellyseerr.URL, cfg.Jellyseerr.APIKey, cfg.DryRun, logger)
	} else if cfg.Requests {
		logger.Warn("requests enabled but Jellyseerr is not configured, disabling")
	}

	// Release-info fallback chain, in preference order.
	sources := []domain.ReleaseInfoSource{reconciler.NewCacheSource(cache)}
	if metadata != nil {
		sources = append(sources, reconciler.NewMetadataSource(metadata, logger))
	}
	if requester != nil {
		sources = append(sources, reconciler.NewRequesterSource(requester, logger))
	}

	runner := &app.Runner{
		Server:       server,
		Metadata:     metadata,
		Cache:        cache,
		Requester:    requester,
		Resolver:     resolver.New(metadata, logger),
		Sources:      sources,
		Offline:      cfg.Offline,
		DryRun:       cfg.DryRun,
		SnapshotPath: cfg.SnapshotPath,
		LogPath:      logPath,
		Display:      display.New(os.Stdout, logger),
		Logger:       logger,
	}

	return runner.Run(context.Background())
}
