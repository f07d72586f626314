// Package reconciler acts on the gap between a collection's canonical
// membership and what the library holds: it classifies each missing title
// by availability and optionally requests it through the request service.
package reconciler

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/collectarr/collectarr/internal/domain"
)

// Reconciler processes missing items against an ordered chain of release
// info sources and, when enabled, a request service. Respects dry-run: in
// dry-run an eligible item is recorded as a would-request event and counted,
// without touching the request connector.
type Reconciler struct {
	sources     []domain.ReleaseInfoSource
	requester   domain.Requester
	dryRun      bool
	currentYear int
	logger      *slog.Logger

	// Per-run memo so one TMDb id is looked up and requested at most once,
	// even when it is missing from several collections.
	lookups   map[int]*domain.ReleaseInfo
	requested map[int]struct{}
}

// New creates a reconciler. requester may be nil, in which case missing
// items are left alone entirely: nothing is looked up, classified, or
// requested.
func New(sources []domain.ReleaseInfoSource, requester domain.Requester, dryRun bool, currentYear int, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		sources:     sources,
		requester:   requester,
		dryRun:      dryRun,
		currentYear: currentYear,
		logger:      logger,
		lookups:     make(map[int]*domain.ReleaseInfo),
		requested:   make(map[int]struct{}),
	}
}

// Result summarizes a reconciliation pass.
type Result struct {
	Requested int
	Skipped   domain.SkipStats
}

// Process walks every (collection, missing item) pair. Per-item request
// failures are logged and never abort the pass; a fatal lookup error
// (rejected credential, cancellation) aborts immediately.
func (r *Reconciler) Process(ctx context.Context, descriptors []domain.CollectionDescriptor) (Result, error) {
	result := Result{Skipped: make(domain.SkipStats)}
	if r.requester == nil {
		return result, nil
	}

	for _, d := range descriptors {
		for _, m := range d.Missing {
			if err := r.processItem(ctx, d.Name, m, &result); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

func (r *Reconciler) processItem(ctx context.Context, collection string, m domain.CollectionMember, result *Result) error {
	info, err := r.releaseInfo(ctx, m.ID)
	if err != nil {
		return err
	}
	if info == nil {
		r.logger.Info("skipping missing movie", "title", m.Title, "tmdb", m.ID, "reason", string(domain.SkipNoMetadata))
		result.Skipped.Add(domain.SkipNoMetadata)
		return nil
	}

	if reason, eligible := Classify(info.ReleaseDate, info.Status, r.currentYear); !eligible {
		r.logger.Info("skipping missing movie",
			"title", m.Title, "tmdb", m.ID, "reason", string(reason), "release_date", info.ReleaseDate, "status", info.Status)
		result.Skipped.Add(reason)
		return nil
	}

	if _, done := r.requested[m.ID]; done {
		return nil
	}

	if r.dryRun {
		r.logger.Info("[dry run] would request missing movie", "title", m.Title, "tmdb", m.ID, "collection", collection)
		r.requested[m.ID] = struct{}{}
		result.Requested++
		return nil
	}

	// A failing existence check is treated as "not requested", never fatal.
	already, err := r.requester.IsRequested(ctx, m.ID)
	if err != nil {
		r.logger.Warn("request existence check failed, assuming not requested", "tmdb", m.ID, "error", err)
		already = false
	}
	if already {
		r.logger.Info("already requested", "title", m.Title, "tmdb", m.ID)
		r.requested[m.ID] = struct{}{}
		return nil
	}

	if err := r.requester.RequestMovie(ctx, m.ID); err != nil {
		r.logger.Warn("request submission failed", "title", m.Title, "tmdb", m.ID, "error", err)
		return nil
	}

	r.logger.Info("requested missing movie", "title", m.Title, "tmdb", m.ID, "collection", collection)
	r.requested[m.ID] = struct{}{}
	result.Requested++
	return nil
}

// releaseInfo walks the fallback chain, memoizing per id so the same title
// is never fetched twice in a run. A fatal source error is propagated, never
// memoized as a miss.
func (r *Reconciler) releaseInfo(ctx context.Context, tmdbID int) (*domain.ReleaseInfo, error) {
	if info, seen := r.lookups[tmdbID]; seen {
		return info, nil
	}

	var found *domain.ReleaseInfo
	for _, src := range r.sources {
		info, err := src.ReleaseInfo(ctx, tmdbID)
		if err != nil {
			return nil, err
		}
		if info != nil {
			r.logger.Debug("release info resolved", "tmdb", tmdbID, "source", src.Name())
			found = info
			break
		}
	}

	r.lookups[tmdbID] = found
	return found, nil
}

// Classify decides whether a missing title is eligible for a request. It is
// a total function of the release date, status, and current year; eligible
// is false when the skip reason applies.
func Classify(releaseDate, status string, currentYear int) (domain.SkipReason, bool) {
	if releaseDate == "" {
		return domain.SkipNoReleaseDate, false
	}
	if len(releaseDate) < 4 {
		return domain.SkipInvalidReleaseDate, false
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return domain.SkipInvalidReleaseDate, false
	}
	if year > currentYear {
		return domain.SkipUnreleased, false
	}
	if status == "Rumored" || status == "Planned" {
		return domain.SkipRumoredPlanned, false
	}
	return "", true
}
