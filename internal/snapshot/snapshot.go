// Package snapshot loads the pre-exported collection definitions used in
// offline mode instead of the TMDb API.
package snapshot

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/collectarr/collectarr/internal/domain"
)

// DefaultPath is where the exported snapshot is expected relative to the
// working directory.
const DefaultPath = "metadata/collections.json"

// Entry is one collection definition from the snapshot file.
type Entry struct {
	Name   string                    `json:"name"`
	Movies []domain.CollectionMember `json:"movies"`
}

// Snapshot holds the parsed offline collection definitions keyed by TMDb
// collection id.
type Snapshot struct {
	Collections map[int]Entry
}

// IDs returns the collection ids in ascending order, for deterministic
// traversal.
func (s *Snapshot) IDs() []int {
	ids := make([]int, 0, len(s.Collections))
	for id := range s.Collections {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Load reads and parses the snapshot file. A missing file is fatal to the
// caller: offline mode has no fallback, so the error wraps
// domain.ErrSnapshotMissing.
func Load(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSnapshotMissing, path)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var doc struct {
		Collections map[string]Entry `json:"collections"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}

	snap := &Snapshot{Collections: make(map[int]Entry, len(doc.Collections))}
	for key, entry := range doc.Collections {
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = fmt.Sprintf("Collection %d", id)
		}
		snap.Collections[id] = entry
	}
	return snap, nil
}
