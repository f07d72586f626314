package app_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectarr/collectarr/internal/app"
	"github.com/collectarr/collectarr/internal/display"
	"github.com/collectarr/collectarr/internal/domain"
	"github.com/collectarr/collectarr/internal/log"
	"github.com/collectarr/collectarr/internal/reconciler"
	"github.com/collectarr/collectarr/internal/resolver"
)

type fakeServer struct {
	users  []domain.User
	movies []domain.LibraryItem

	created map[string][]string // name -> member ids
	added   map[string][]string // collection id -> member ids
}

func (f *fakeServer) ListUsers(context.Context) ([]domain.User, error) { return f.users, nil }

func (f *fakeServer) GetMovies(context.Context, string) ([]domain.LibraryItem, error) {
	return f.movies, nil
}

func (f *fakeServer) FindCollection(context.Context, string, string) (string, error) {
	return "", nil
}

func (f *fakeServer) CreateCollection(_ context.Context, name string, ids []string) (string, error) {
	if f.created == nil {
		f.created = make(map[string][]string)
	}
	f.created[name] = ids
	return "col-" + name, nil
}

func (f *fakeServer) AddToCollection(_ context.Context, collectionID string, ids []string) error {
	if f.added == nil {
		f.added = make(map[string][]string)
	}
	f.added[collectionID] = append(f.added[collectionID], ids...)
	return nil
}

func (f *fakeServer) UploadPrimaryImage(context.Context, string, []byte) error { return nil }
func (f *fakeServer) HasPrimaryImage(context.Context, string) bool             { return true }

type fakeCache struct {
	pruned map[int]struct{}
}

func (f *fakeCache) Title(int) (*domain.Title, bool)             { return nil, false }
func (f *fakeCache) SetTitle(int, *domain.Title) error           { return nil }
func (f *fakeCache) HasTitle(int) bool                           { return false }
func (f *fakeCache) Collection(int) (*domain.Collection, bool)   { return nil, false }
func (f *fakeCache) SetCollection(int, *domain.Collection) error { return nil }
func (f *fakeCache) HasCollection(int) bool                      { return false }
func (f *fakeCache) Close() error                                { return nil }

func (f *fakeCache) PruneTitles(valid map[int]struct{}) error {
	f.pruned = valid
	return nil
}

type fakeRequester struct {
	requested []int
}

func (f *fakeRequester) MovieDetails(_ context.Context, tmdbID int) (*domain.ReleaseInfo, error) {
	return &domain.ReleaseInfo{ReleaseDate: "2003-11-05", Status: "Released"}, nil
}

func (f *fakeRequester) IsRequested(context.Context, int) (bool, error) { return false, nil }

func (f *fakeRequester) RequestMovie(_ context.Context, tmdbID int) error {
	f.requested = append(f.requested, tmdbID)
	return nil
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collections.json")
	content := `{
		"collections": {
			"2344": {
				"name": "The Matrix Collection",
				"movies": [
					{"id": 10, "title": "The Matrix", "release_date": "1999-03-30"},
					{"id": 11, "title": "The Matrix Reloaded", "release_date": "2003-05-15"},
					{"id": 13, "title": "The Matrix Resurrections", "release_date": "2021-12-22"}
				]
			}
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func movie(id, tmdb, name string) domain.LibraryItem {
	return domain.LibraryItem{ID: id, Title: name, ProviderIDs: map[string]string{"Tmdb": tmdb}}
}

func TestRunOfflineEndToEnd(t *testing.T) {
	srv := &fakeServer{
		users: []domain.User{
			{ID: "bot", Name: "bot", Disabled: true},
			{ID: "u1", Name: "alice"},
		},
		movies: []domain.LibraryItem{
			movie("jfa", "10", "The Matrix"),
			movie("jfb", "11", "The Matrix Reloaded"),
			movie("jfc", "50", "Standalone"),
		},
	}
	cache := &fakeCache{}
	req := &fakeRequester{}

	runner := &app.Runner{
		Server:       srv,
		Cache:        cache,
		Requester:    req,
		Resolver:     resolver.New(nil, log.NullLogger()),
		Sources:      []domain.ReleaseInfoSource{reconciler.NewRequesterSource(req, log.NullLogger())},
		Offline:      true,
		SnapshotPath: writeSnapshot(t),
		Display:      display.New(io.Discard, log.NullLogger()),
		Logger:       log.NullLogger(),
	}

	require.NoError(t, runner.Run(context.Background()))

	// The grouping is created from the two locally-present members.
	require.Contains(t, srv.created, "The Matrix Collection")
	assert.Equal(t, []string{"jfa", "jfb"}, srv.created["The Matrix Collection"])

	// The absent third member was requested.
	assert.Equal(t, []int{13}, req.requested)

	// Library titles and the missing member survive the prune.
	assert.Equal(t, map[int]struct{}{10: {}, 11: {}, 50: {}, 13: {}}, cache.pruned)
}

type failingMetadata struct{}

func (failingMetadata) Movie(context.Context, int) (*domain.Title, error) {
	return nil, domain.ErrAuthFailed
}

func (failingMetadata) Collection(context.Context, int) (*domain.Collection, error) {
	return nil, domain.ErrAuthFailed
}

func (failingMetadata) Poster(context.Context, int) ([]byte, error) { return nil, nil }

func TestRunAbortsWhenMetadataCredentialRejected(t *testing.T) {
	srv := &fakeServer{
		users: []domain.User{{ID: "u1", Name: "alice"}},
		movies: []domain.LibraryItem{
			movie("jfa", "10", "The Matrix"),
			movie("jfb", "11", "The Matrix Reloaded"),
		},
	}
	req := &fakeRequester{}

	runner := &app.Runner{
		Server:    srv,
		Requester: req,
		Resolver:  resolver.New(nil, log.NullLogger()),
		Sources: []domain.ReleaseInfoSource{
			reconciler.NewMetadataSource(failingMetadata{}, log.NullLogger()),
		},
		Offline:      true,
		SnapshotPath: writeSnapshot(t),
		Display:      display.New(io.Discard, log.NullLogger()),
		Logger:       log.NullLogger(),
	}

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
	// The run stopped before anything was requested or applied.
	assert.Empty(t, req.requested)
	assert.Empty(t, srv.created)
}

func TestRunNoUsableUser(t *testing.T) {
	srv := &fakeServer{users: []domain.User{{ID: "bot", Disabled: true}}}

	runner := &app.Runner{
		Server:   srv,
		Resolver: resolver.New(nil, log.NullLogger()),
		Offline:  true,
		Display:  display.New(io.Discard, log.NullLogger()),
		Logger:   log.NullLogger(),
	}

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoUsers)
}

func TestRunMissingSnapshotIsFatal(t *testing.T) {
	srv := &fakeServer{
		users:  []domain.User{{ID: "u1"}},
		movies: []domain.LibraryItem{movie("jfa", "10", "The Matrix")},
	}

	runner := &app.Runner{
		Server:       srv,
		Resolver:     resolver.New(nil, log.NullLogger()),
		Offline:      true,
		SnapshotPath: filepath.Join(t.TempDir(), "nope.json"),
		Display:      display.New(io.Discard, log.NullLogger()),
		Logger:       log.NullLogger(),
	}

	err := runner.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrSnapshotMissing)
}

func TestRunWithoutRequesterSkipsReconciliation(t *testing.T) {
	srv := &fakeServer{
		users: []domain.User{{ID: "u1"}},
		movies: []domain.LibraryItem{
			movie("jfa", "10", "The Matrix"),
			movie("jfb", "11", "The Matrix Reloaded"),
		},
	}

	runner := &app.Runner{
		Server:       srv,
		Cache:        &fakeCache{},
		Resolver:     resolver.New(nil, log.NullLogger()),
		Offline:      true,
		SnapshotPath: writeSnapshot(t),
		Display:      display.New(io.Discard, log.NullLogger()),
		Logger:       log.NullLogger(),
	}

	require.NoError(t, runner.Run(context.Background()))
	assert.Contains(t, srv.created, "The Matrix Collection")
}
