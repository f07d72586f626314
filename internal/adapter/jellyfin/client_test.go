package jellyfin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectarr/collectarr/internal/adapter/jellyfin"
	"github.com/collectarr/collectarr/internal/domain"
	"github.com/collectarr/collectarr/internal/log"
)

type recordingServer struct {
	*httptest.Server

	mu    sync.Mutex
	posts []string
}

func (s *recordingServer) postCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

func newRecordingServer(t *testing.T, handler http.Handler) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			rs.mu.Lock()
			rs.posts = append(rs.posts, r.URL.Path)
			rs.mu.Unlock()
		}
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func TestListUsers(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Emby-Token"))
		w.Write([]byte(`[
			{"Id": "u1", "Name": "alice"},
			{"Id": "u2", "Name": "bot", "Policy": {"IsDisabled": true}},
			{"Id": "u3", "Name": "old", "IsDisabled": true}
		]`))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	users, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, domain.User{ID: "u1", Name: "alice"}, users[0])
	assert.True(t, users[1].Disabled)
	assert.True(t, users[2].Disabled)
}

func TestListUsersUnauthorized(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	c := jellyfin.NewClient(srv.URL, "bad", false, log.NullLogger())

	_, err := c.ListUsers(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}

func TestServerUnreachable(t *testing.T) {
	c := jellyfin.NewClient("http://127.0.0.1:1", "secret", false, log.NullLogger())

	_, err := c.ListUsers(context.Background())
	assert.ErrorIs(t, err, domain.ErrServerOffline)
}

func TestGetMoviesPaginates(t *testing.T) {
	// Two pages of movies plus one non-movie item to be filtered out.
	page := func(items string, total int) string {
		return `{"Items": [` + items + `], "TotalRecordCount": ` + strconv.Itoa(total) + `}`
	}
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/Items", r.URL.Path)
		assert.Equal(t, "Movie", r.URL.Query().Get("IncludeItemTypes"))
		assert.Equal(t, "ProviderIds", r.URL.Query().Get("Fields"))
		assert.Equal(t, "u1", r.URL.Query().Get("UserId"))

		if r.URL.Query().Get("StartIndex") == "0" {
			w.Write([]byte(page(`
				{"Id": "jfa", "Name": "The Matrix", "Type": "Movie", "ProviderIds": {"Tmdb": "603"}},
				{"Id": "jfx", "Name": "Some Folder", "Type": "Folder"}`, 3)))
			return
		}
		w.Write([]byte(page(`
			{"Id": "jfb", "Name": "The Matrix Reloaded", "Type": "Movie", "ProviderIds": {"Tmdb": "604"}}`, 3)))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	movies, err := c.GetMovies(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "jfa", movies[0].ID)
	assert.Equal(t, map[string]string{"Tmdb": "603"}, movies[0].ProviderIDs)
	assert.Equal(t, "jfb", movies[1].ID)
}

func TestFindCollectionExactMatchOnly(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BoxSet", r.URL.Query().Get("IncludeItemTypes"))
		assert.Equal(t, "The Matrix Collection", r.URL.Query().Get("SearchTerm"))
		// Substring search returns near-matches the client must reject.
		w.Write([]byte(`{"Items": [
			{"Id": "c1", "Name": "The Matrix Collection Extended", "Type": "BoxSet"},
			{"Id": "c2", "Name": "The Matrix Collection", "Type": "BoxSet"}
		], "TotalRecordCount": 2}`))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	id, err := c.FindCollection(context.Background(), "The Matrix Collection", "u1")
	require.NoError(t, err)
	assert.Equal(t, "c2", id)
}

func TestFindCollectionNotFound(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Items": [], "TotalRecordCount": 0}`))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	id, err := c.FindCollection(context.Background(), "Nope", "u1")
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestCreateCollection(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Collections", r.URL.Path)
		assert.Equal(t, "The Matrix Collection", r.URL.Query().Get("Name"))
		assert.Equal(t, "jfa,jfb", r.URL.Query().Get("Ids"))
		w.Write([]byte(`{"Id": "c9"}`))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	id, err := c.CreateCollection(context.Background(), "The Matrix Collection", []string{"jfa", "jfb"})
	require.NoError(t, err)
	assert.Equal(t, "c9", id)
	assert.Equal(t, 1, srv.postCount())
}

func TestCreateCollectionNoIDs(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty member set")
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	id, err := c.CreateCollection(context.Background(), "Empty", nil)
	require.NoError(t, err)
	assert.Equal(t, "", id)
}

func TestDryRunSuppressesMutations(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("dry run must not send %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{}`))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", true, log.NullLogger())
	ctx := context.Background()

	id, err := c.CreateCollection(ctx, "The Matrix Collection", []string{"jfa"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, c.AddToCollection(ctx, id, []string{"jfb"}))
	require.NoError(t, c.UploadPrimaryImage(ctx, id, []byte("jpeg")))
	assert.Zero(t, srv.postCount())
}

func TestAddToCollection(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Collections/c9/Items", r.URL.Path)
		assert.Equal(t, "jfa,jfb", r.URL.Query().Get("Ids"))
		w.WriteHeader(http.StatusNoContent)
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	require.NoError(t, c.AddToCollection(context.Background(), "c9", []string{"jfa", "jfb"}))
	assert.Equal(t, 1, srv.postCount())
}

func TestRetriesOnServerError(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		n := hits
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	_, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestHasPrimaryImage(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Items/c9/Images/Primary" {
			w.Write([]byte("jpeg"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	assert.True(t, c.HasPrimaryImage(context.Background(), "c9"))
	assert.False(t, c.HasPrimaryImage(context.Background(), "other"))
}

func TestUploadPrimaryImage(t *testing.T) {
	srv := newRecordingServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Items/c9/Images/Primary", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))

	c := jellyfin.NewClient(srv.URL, "secret", false, log.NullLogger())

	require.NoError(t, c.UploadPrimaryImage(context.Background(), "c9", []byte("jpeg")))
	assert.Equal(t, 1, srv.postCount())
}
