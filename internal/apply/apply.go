// Package apply writes resolved collections back to the media server:
// find-or-create the grouping, union in the present items, and set cover art.
package apply

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/collectarr/collectarr/internal/domain"
)

// Characters Jellyfin rejects in item names.
var (
	invalidNameChars = regexp.MustCompile(`[:<>"/\\|?*]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// SanitizeName strips characters illegal in server item names and collapses
// whitespace. Both lookup and creation use the sanitized form, so the two
// can never disagree about the name.
func SanitizeName(name string) string {
	cleaned := invalidNameChars.ReplaceAllString(name, " ")
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(cleaned, " "))
}

// Event is a single applied change, reported for display purposes.
type Event struct {
	Name    string
	Created bool // false = updated existing grouping
	Items   int
}

// Stats summarizes an apply pass.
type Stats struct {
	Created int
	Updated int
	Events  []Event
}

// Applier reconciles resolved collections against the media server state.
type Applier struct {
	server   domain.MediaServer
	metadata domain.MetadataSource // nil disables poster handling
	userID   string
	logger   *slog.Logger
}

// New creates an applier. metadata may be nil (offline mode) to skip cover
// art entirely.
func New(server domain.MediaServer, metadata domain.MetadataSource, userID string, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{server: server, metadata: metadata, userID: userID, logger: logger}
}

// Apply processes descriptors in deterministic order (sorted by sanitized
// name) for reproducible logs. Per-collection failures are logged and do not
// abort the pass; running Apply twice yields the same server-side membership
// because adding members is a set union.
func (a *Applier) Apply(ctx context.Context, descriptors []domain.CollectionDescriptor) Stats {
	ordered := make([]domain.CollectionDescriptor, len(descriptors))
	copy(ordered, descriptors)
	sort.Slice(ordered, func(i, j int) bool {
		ni, nj := SanitizeName(ordered[i].Name), SanitizeName(ordered[j].Name)
		if ni != nj {
			return ni < nj
		}
		return ordered[i].CollectionID < ordered[j].CollectionID
	})

	var stats Stats
	for _, d := range ordered {
		a.applyOne(ctx, d, &stats)
	}
	return stats
}

func (a *Applier) applyOne(ctx context.Context, d domain.CollectionDescriptor, stats *Stats) {
	name := SanitizeName(d.Name)
	if name == "" || len(d.PresentIDs) == 0 {
		return
	}

	existing, err := a.server.FindCollection(ctx, name, a.userID)
	if err != nil {
		// Lookup failure degrades to "not found" so the run continues.
		a.logger.Warn("collection lookup failed", "name", name, "error", err)
		existing = ""
	}

	var groupID string
	if existing != "" {
		if err := a.server.AddToCollection(ctx, existing, d.PresentIDs); err != nil {
			a.logger.Warn("failed to update collection", "name", name, "error", err)
			return
		}
		groupID = existing
		stats.Updated++
		stats.Events = append(stats.Events, Event{Name: name, Created: false, Items: len(d.PresentIDs)})
		a.logger.Info("updated collection", "name", name, "items", len(d.PresentIDs))
	} else {
		groupID, err = a.server.CreateCollection(ctx, name, d.PresentIDs)
		if err != nil {
			a.logger.Warn("failed to create collection", "name", name, "error", err)
			return
		}
		stats.Created++
		stats.Events = append(stats.Events, Event{Name: name, Created: true, Items: len(d.PresentIDs)})
		a.logger.Info("created collection", "name", name, "items", len(d.PresentIDs))
	}

	if groupID == "" || a.metadata == nil {
		return
	}
	a.ensurePoster(ctx, groupID, d)
}

func (a *Applier) ensurePoster(ctx context.Context, groupID string, d domain.CollectionDescriptor) {
	if a.server.HasPrimaryImage(ctx, groupID) {
		return
	}

	img, err := a.metadata.Poster(ctx, d.CollectionID)
	if err != nil {
		a.logger.Warn("poster fetch failed", "collection", d.CollectionID, "error", err)
		return
	}
	if len(img) == 0 {
		// No art for this collection; not an error.
		return
	}

	if err := a.server.UploadPrimaryImage(ctx, groupID, img); err != nil {
		a.logger.Warn("poster upload failed", "collection", d.CollectionID, "error", err)
	}
}
