package store

import (
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/collectarr/collectarr/internal/domain"
)

// Earlier iterations of this tool kept the cache in a single JSON file, in
// two historical layouts:
//
//   - partitioned: {"movie": {"603": {...}}, "collection": {"2344": {...}}}
//   - flat, keyed by request path: {"/movie/603": {...}, "/collection/2344": {...}}
//
// Both are recognized on startup and migrated into the bolt buckets, after
// which the file is renamed aside so the import runs once.
const legacyFileName = "tmdb_cache.json"

// legacyTitle matches the movie payload shape the old cache stored.
type legacyTitle struct {
	ID                  int    `json:"id"`
	Title               string `json:"title"`
	ReleaseDate         string `json:"release_date"`
	Status              string `json:"status"`
	PosterPath          string `json:"poster_path"`
	BelongsToCollection *struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"belongs_to_collection"`
}

// legacyCollection matches the collection payload shape the old cache stored.
type legacyCollection struct {
	ID         int                       `json:"id"`
	Name       string                    `json:"name"`
	PosterPath string                    `json:"poster_path"`
	Parts      []domain.CollectionMember `json:"parts"`
}

func (s *MetadataStore) importLegacyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		// Unreadable legacy file: leave it alone rather than lose it.
		return nil
	}

	titles := map[string]json.RawMessage{}
	collections := map[string]json.RawMessage{}

	if _, partitioned := doc["movie"]; partitioned {
		json.Unmarshal(doc["movie"], &titles)
		json.Unmarshal(doc["collection"], &collections)
	} else if _, partitioned := doc["title"]; partitioned {
		json.Unmarshal(doc["title"], &titles)
		json.Unmarshal(doc["collection"], &collections)
	} else {
		// Flat form keyed by request path.
		for key, val := range doc {
			switch {
			case strings.HasPrefix(key, "/movie/"):
				titles[key[strings.LastIndex(key, "/")+1:]] = val
			case strings.HasPrefix(key, "/collection/"):
				collections[key[strings.LastIndex(key, "/")+1:]] = val
			}
		}
	}

	for key, val := range titles {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var lt legacyTitle
		if err := json.Unmarshal(val, &lt); err != nil {
			continue
		}
		t := &domain.Title{
			ID:          lt.ID,
			Title:       lt.Title,
			ReleaseDate: lt.ReleaseDate,
			Status:      lt.Status,
			PosterPath:  lt.PosterPath,
		}
		if t.ID == 0 {
			t.ID = id
		}
		if lt.BelongsToCollection != nil {
			t.CollectionID = lt.BelongsToCollection.ID
			t.CollectionName = lt.BelongsToCollection.Name
		}
		if err := s.SetTitle(id, t); err != nil {
			return err
		}
	}

	for key, val := range collections {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		var lc legacyCollection
		if err := json.Unmarshal(val, &lc); err != nil {
			continue
		}
		c := &domain.Collection{
			ID:         lc.ID,
			Name:       lc.Name,
			PosterPath: lc.PosterPath,
			Parts:      lc.Parts,
		}
		if c.ID == 0 {
			c.ID = id
		}
		if err := s.SetCollection(id, c); err != nil {
			return err
		}
	}

	return os.Rename(path, path+".imported")
}
