package reconciler

import (
	"context"
	"log/slog"

	"github.com/collectarr/collectarr/internal/domain"
)

// The release-info fallback chain is assembled at startup from these
// adapters, ordered by preference: cache, then the metadata provider (online
// only), then the request service's metadata proxy.

type cacheSource struct {
	cache domain.MetadataCache
}

// NewCacheSource reads availability from previously cached title records.
func NewCacheSource(cache domain.MetadataCache) domain.ReleaseInfoSource {
	return &cacheSource{cache: cache}
}

func (s *cacheSource) Name() string { return "cache" }

func (s *cacheSource) ReleaseInfo(_ context.Context, tmdbID int) (*domain.ReleaseInfo, error) {
	t, ok := s.cache.Title(tmdbID)
	if !ok {
		return nil, nil
	}
	return &domain.ReleaseInfo{ReleaseDate: t.ReleaseDate, Status: t.Status}, nil
}

type metadataSource struct {
	metadata domain.MetadataSource
	logger   *slog.Logger
}

// NewMetadataSource fetches availability from the metadata provider. The
// provider already degrades transient failures to an absent record; an error
// from it is fatal (rejected credential, cancellation) and is propagated.
func NewMetadataSource(metadata domain.MetadataSource, logger *slog.Logger) domain.ReleaseInfoSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &metadataSource{metadata: metadata, logger: logger}
}

func (s *metadataSource) Name() string { return "tmdb" }

func (s *metadataSource) ReleaseInfo(ctx context.Context, tmdbID int) (*domain.ReleaseInfo, error) {
	t, err := s.metadata.Movie(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}
	return &domain.ReleaseInfo{ReleaseDate: t.ReleaseDate, Status: t.Status}, nil
}

type requesterSource struct {
	requester domain.Requester
	logger    *slog.Logger
}

// NewRequesterSource fetches availability through the request service's own
// metadata endpoint. Lookup failures degrade to a miss; the request service
// is the last link in the chain and never fatal here.
func NewRequesterSource(requester domain.Requester, logger *slog.Logger) domain.ReleaseInfoSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &requesterSource{requester: requester, logger: logger}
}

func (s *requesterSource) Name() string { return "jellyseerr" }

func (s *requesterSource) ReleaseInfo(ctx context.Context, tmdbID int) (*domain.ReleaseInfo, error) {
	info, err := s.requester.MovieDetails(ctx, tmdbID)
	if err != nil {
		s.logger.Debug("request service lookup failed", "tmdb", tmdbID, "error", err)
		return nil, nil
	}
	return info, nil
}
