package domain

import "context"

// MediaServer is the surface this tool consumes from the media server
// (Jellyfin). Implementations honor a dry-run mode in which every mutating
// call is replaced by a logged intent and a synthetic identifier so the
// pipeline can proceed without side effects.
type MediaServer interface {
	// ListUsers returns all server accounts.
	ListUsers(ctx context.Context) ([]User, error)

	// GetMovies returns every movie visible to the user, including
	// provider identifier fields.
	GetMovies(ctx context.Context, userID string) ([]LibraryItem, error)

	// FindCollection looks up an existing grouping by exact name match.
	// Returns "" when no grouping with that exact name exists.
	FindCollection(ctx context.Context, name, userID string) (string, error)

	// CreateCollection creates a grouping with an initial member set and
	// returns its id. Creating with no ids is a no-op returning "".
	CreateCollection(ctx context.Context, name string, ids []string) (string, error)

	// AddToCollection unions ids into an existing grouping. The server
	// deduplicates; re-adding a present id never duplicates it.
	AddToCollection(ctx context.Context, collectionID string, ids []string) error

	// UploadPrimaryImage sets the grouping's cover art.
	UploadPrimaryImage(ctx context.Context, itemID string, image []byte) error

	// HasPrimaryImage reports whether cover art already exists.
	HasPrimaryImage(ctx context.Context, itemID string) bool
}

// MetadataSource is the TMDb-facing surface. Lookups return (nil, nil) when
// the record is absent, could not be fetched after retries, or the source is
// in offline mode; a non-nil error is reserved for fatal conditions
// (ErrAuthFailed) and context cancellation.
type MetadataSource interface {
	Movie(ctx context.Context, id int) (*Title, error)
	Collection(ctx context.Context, id int) (*Collection, error)
	Poster(ctx context.Context, collectionID int) ([]byte, error)
}

// Requester is the request-management (Jellyseerr) surface.
type Requester interface {
	// MovieDetails fetches title availability via the request service's
	// own metadata proxy.
	MovieDetails(ctx context.Context, tmdbID int) (*ReleaseInfo, error)

	// IsRequested reports whether a request for the title already exists.
	IsRequested(ctx context.Context, tmdbID int) (bool, error)

	// RequestMovie submits a request for the title.
	RequestMovie(ctx context.Context, tmdbID int) error
}

// MetadataCache is the persistent title/collection cache backing the
// metadata connector. Writes are serialized by the implementation; racing
// reads of an unwritten key both miss, which is tolerated because duplicate
// fetches are idempotent.
type MetadataCache interface {
	Title(id int) (*Title, bool)
	SetTitle(id int, t *Title) error
	HasTitle(id int) bool

	Collection(id int) (*Collection, bool)
	SetCollection(id int, c *Collection) error
	HasCollection(id int) bool

	// PruneTitles removes title entries whose id is not in valid.
	// Collection entries are never pruned.
	PruneTitles(valid map[int]struct{}) error

	Close() error
}

// ReleaseInfoSource yields availability metadata for a missing title. The
// reconciler consults an ordered chain of these, stopping at the first hit.
type ReleaseInfoSource interface {
	// Name identifies the source in logs.
	Name() string

	// ReleaseInfo returns availability info. A miss is (nil, nil); a
	// non-nil error is fatal (ErrAuthFailed, context cancellation) and
	// aborts the whole pass.
	ReleaseInfo(ctx context.Context, tmdbID int) (*ReleaseInfo, error)
}
