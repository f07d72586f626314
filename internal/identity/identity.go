// Package identity builds the association between media server item ids and
// TMDb ids. Pure functions, no I/O.
package identity

import (
	"strconv"
	"strings"

	"github.com/collectarr/collectarr/internal/domain"
)

// Map associates a TMDb id with the local item ids that carry it. An
// external id usually maps to a single item, but duplicate copies in the
// library are preserved.
type Map map[int][]string

// Contains reports whether the TMDb id is present in the library.
func (m Map) Contains(tmdbID int) bool {
	_, ok := m[tmdbID]
	return ok
}

// IDs returns the set of TMDb ids as a membership set.
func (m Map) IDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(m))
	for id := range m {
		ids[id] = struct{}{}
	}
	return ids
}

// TMDBID extracts the TMDb id from an item's provider identifiers. The key
// is matched case-insensitively ("Tmdb", "tmdb", "TMDB" all appear in the
// wild); a missing key or non-integer value yields ok=false.
func TMDBID(item domain.LibraryItem) (int, bool) {
	for key, val := range item.ProviderIDs {
		if !strings.EqualFold(key, "tmdb") {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// BuildMap derives the TMDb-to-local mapping from library items. Items
// without a valid TMDb id contribute nothing.
func BuildMap(items []domain.LibraryItem) Map {
	m := make(Map)
	for _, item := range items {
		if id, ok := TMDBID(item); ok {
			m[id] = append(m[id], item.ID)
		}
	}
	return m
}
