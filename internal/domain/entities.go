package domain

// LibraryItem is a movie entry as the media server reports it.
// The server owns these; everything here is read-only to us.
type LibraryItem struct {
	ID          string            // Server-assigned opaque identifier
	Title       string            // Display title
	ProviderIDs map[string]string // External provider identifiers (e.g. "Tmdb" -> "603")
}

// Title is the normalized TMDb movie record. Raw provider payloads are
// stripped down to this shape at the connector boundary and never escape it.
type Title struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	ReleaseDate    string `json:"release_date,omitempty"`
	Status         string `json:"status,omitempty"`
	CollectionID   int    `json:"collection_id,omitempty"`
	CollectionName string `json:"collection_name,omitempty"`
	PosterPath     string `json:"poster_path,omitempty"`
}

// CollectionMember is a single title within a TMDb collection's member list.
type CollectionMember struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// Collection is the normalized TMDb collection record with its full
// canonical member list.
type Collection struct {
	ID         int                `json:"id"`
	Name       string             `json:"name"`
	PosterPath string             `json:"poster_path,omitempty"`
	Parts      []CollectionMember `json:"parts"`
}

// CollectionDescriptor is one resolved grouping for a single run: which
// library items belong to a TMDb collection, what the collection canonically
// contains, and which members the library is missing. Built fresh each run,
// never persisted.
type CollectionDescriptor struct {
	CollectionID int
	Name         string
	PresentIDs   []string           // Local ids already in the library
	CanonicalIDs []int              // Full member list per TMDb
	Missing      []CollectionMember // Canonical members absent locally
}

// User is a media server account.
type User struct {
	ID       string
	Name     string
	Disabled bool
}

// ReleaseInfo is the availability subset of title metadata the missing-item
// reconciler needs, normalized across metadata sources.
type ReleaseInfo struct {
	ReleaseDate string
	Status      string
}

// SkipReason labels why a missing item was not requested.
type SkipReason string

const (
	SkipNoMetadata         SkipReason = "no metadata"
	SkipNoReleaseDate      SkipReason = "no release date"
	SkipInvalidReleaseDate SkipReason = "invalid release date"
	SkipUnreleased         SkipReason = "unreleased"
	SkipRumoredPlanned     SkipReason = "rumored/planned"
)

// SkipStats counts skip reasons accumulated during a run.
type SkipStats map[SkipReason]int

// Add increments the count for a reason.
func (s SkipStats) Add(reason SkipReason) {
	s[reason]++
}

// Total returns the number of skipped items across all reasons.
func (s SkipStats) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}
