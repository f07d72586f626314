package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"

	"github.com/collectarr/collectarr/internal/domain"
)

// Bucket names: one partition per entity kind.
var (
	bucketTitles      = []byte("title")
	bucketCollections = []byte("collection")
)

const dbFileName = "metadata.db"

// MetadataStore implements domain.MetadataCache using BoltDB.
//
// An entry, once written, is authoritative until pruned or the database file
// is deleted externally; there is no expiry. Every write goes through a bolt
// transaction, so concurrent fetch workers can call Set* safely.
type MetadataStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

// Open opens (or creates) the metadata cache under dir. If a legacy JSON
// cache file from earlier iterations of this tool exists in dir, its entries
// are imported into the partitioned buckets and the file is renamed aside.
func Open(dir string) (*MetadataStore, error) {
	if dir == "" {
		// Memory-only mode (no persistence)
		return &MetadataStore{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, dbFileName)
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketTitles, bucketCollections} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &MetadataStore{db: db, cache: make(map[string][]byte)}

	if err := s.importLegacyFile(filepath.Join(dir, legacyFileName)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to import legacy cache: %w", err)
	}

	return s, nil
}

func (s *MetadataStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *MetadataStore) get(bucket []byte, key string, dest interface{}) bool {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

func (s *MetadataStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *MetadataStore) has(bucket []byte, key string) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	_, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok {
		return true
	}

	if s.db == nil {
		return false
	}

	found := false
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil && b.Get([]byte(key)) != nil {
			found = true
		}
		return nil
	})
	return found
}

// === Titles ===

func (s *MetadataStore) Title(id int) (*domain.Title, bool) {
	var t domain.Title
	if !s.get(bucketTitles, strconv.Itoa(id), &t) {
		return nil, false
	}
	return &t, true
}

func (s *MetadataStore) SetTitle(id int, t *domain.Title) error {
	return s.set(bucketTitles, strconv.Itoa(id), t)
}

func (s *MetadataStore) HasTitle(id int) bool {
	return s.has(bucketTitles, strconv.Itoa(id))
}

// === Collections ===

func (s *MetadataStore) Collection(id int) (*domain.Collection, bool) {
	var c domain.Collection
	if !s.get(bucketCollections, strconv.Itoa(id), &c) {
		return nil, false
	}
	return &c, true
}

func (s *MetadataStore) SetCollection(id int, c *domain.Collection) error {
	return s.set(bucketCollections, strconv.Itoa(id), c)
}

func (s *MetadataStore) HasCollection(id int) bool {
	return s.has(bucketCollections, strconv.Itoa(id))
}

// === Pruning ===

// PruneTitles removes title entries whose id is not in valid. Collection
// entries are left untouched.
func (s *MetadataStore) PruneTitles(valid map[int]struct{}) error {
	var stale []string

	s.mu.Lock()
	prefix := string(bucketTitles) + ":"
	for k := range s.cache {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			if !validKey(k[len(prefix):], valid) {
				delete(s.cache, k)
			}
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTitles)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			if !validKey(string(k), valid) {
				stale = append(stale, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTitles)
		for _, k := range stale {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func validKey(key string, valid map[int]struct{}) bool {
	id, err := strconv.Atoi(key)
	if err != nil {
		return false
	}
	_, ok := valid[id]
	return ok
}
