// Package app orchestrates a single synchronization run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/collectarr/collectarr/internal/apply"
	"github.com/collectarr/collectarr/internal/display"
	"github.com/collectarr/collectarr/internal/domain"
	"github.com/collectarr/collectarr/internal/identity"
	"github.com/collectarr/collectarr/internal/reconciler"
	"github.com/collectarr/collectarr/internal/resolver"
	"github.com/collectarr/collectarr/internal/snapshot"
)

// Runner wires the pipeline: library scan, identity mapping, collection
// resolution, missing-item reconciliation, and grouping application.
type Runner struct {
	Server    domain.MediaServer
	Metadata  domain.MetadataSource // nil in offline mode
	Cache     domain.MetadataCache
	Requester domain.Requester // nil when requests are disabled

	Resolver *resolver.Resolver
	Sources  []domain.ReleaseInfoSource

	Offline      bool
	DryRun       bool
	SnapshotPath string
	LogPath      string

	Display *display.Printer
	Logger  *slog.Logger
}

// Run executes one synchronization pass. Fatal conditions (missing
// credentials were checked earlier; here: no usable user, rejected metadata
// credential, missing snapshot in offline mode) return an error before any
// mutating work.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Display.Banner(r.Offline, r.DryRun, r.Requester != nil)

	userID, err := r.ensureUser(ctx)
	if err != nil {
		return err
	}

	r.Display.Progress("Checking movies...")
	movies, err := r.Server.GetMovies(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list movies: %w", err)
	}
	logger.Info("library scanned", "movies", len(movies))

	idmap := identity.BuildMap(movies)
	logger.Info("identity map built", "mapped", len(idmap), "unmapped", len(movies)-len(idmap))

	var descriptors []domain.CollectionDescriptor
	if r.Offline {
		r.Display.Progress("Building collections (offline)...")
		snap, err := snapshot.Load(r.SnapshotPath)
		if err != nil {
			return err
		}
		descriptors = r.Resolver.ResolveSnapshot(snap, idmap)
	} else {
		r.Display.Progress("Building collections (online)...")
		descriptors, err = r.Resolver.ResolveOnline(ctx, movies, idmap)
		if err != nil {
			return fmt.Errorf("collection resolution failed: %w", err)
		}
	}
	logger.Info("collections resolved", "count", len(descriptors))

	var missing reconciler.Result
	missing.Skipped = make(domain.SkipStats)
	if r.Requester != nil {
		r.Display.Progress("Processing missing movies...")
		rec := reconciler.New(r.Sources, r.Requester, r.DryRun, time.Now().Year(), logger)
		missing, err = rec.Process(ctx, descriptors)
		if err != nil {
			return fmt.Errorf("missing-item processing failed: %w", err)
		}
	}

	r.Display.Progress("Applying collections...")
	applier := apply.New(r.Server, r.Metadata, userID, logger)
	stats := applier.Apply(ctx, descriptors)
	for _, ev := range stats.Events {
		verb := "Updated"
		if ev.Created {
			verb = "Created"
		}
		r.Display.Action(fmt.Sprintf("%s collection %q (%d movies)", verb, ev.Name, ev.Items))
	}

	r.pruneCache(idmap, descriptors, logger)

	for reason, count := range missing.Skipped {
		r.Display.Warn(fmt.Sprintf("skipped %d missing movies: %s", count, reason))
	}
	r.Display.Summary(len(movies), len(descriptors), stats.Created, stats.Updated,
		missing.Requested, missing.Skipped.Total(), r.LogPath)

	return nil
}

// ensureUser picks the first non-disabled server account.
func (r *Runner) ensureUser(ctx context.Context) (string, error) {
	users, err := r.Server.ListUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if !u.Disabled {
			return u.ID, nil
		}
	}
	return "", domain.ErrNoUsers
}

// pruneCache drops cached titles no longer reachable from the current
// library or the current missing set.
func (r *Runner) pruneCache(idmap identity.Map, descriptors []domain.CollectionDescriptor, logger *slog.Logger) {
	if r.Cache == nil {
		return
	}
	valid := idmap.IDs()
	for _, d := range descriptors {
		for _, m := range d.Missing {
			valid[m.ID] = struct{}{}
		}
	}
	if err := r.Cache.PruneTitles(valid); err != nil {
		logger.Warn("cache prune failed", "error", err)
	}
}
