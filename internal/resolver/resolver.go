// Package resolver groups library items into candidate TMDb collections and
// computes, per collection, what is present locally, the canonical
// membership, and the missing members.
package resolver

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/collectarr/collectarr/internal/domain"
	"github.com/collectarr/collectarr/internal/identity"
	"github.com/collectarr/collectarr/internal/snapshot"
)

// MinMovies is the minimum number of locally-present members a collection
// needs before it is worth syncing. Singleton matches are noise.
const MinMovies = 2

const (
	defaultTitleWorkers      = 5
	defaultCollectionWorkers = 3
)

// Resolver produces collection descriptors from library items using either
// the remote metadata source or a local snapshot. Both strategies emit the
// same shape, gated by MinMovies, sorted by display name.
type Resolver struct {
	metadata domain.MetadataSource
	logger   *slog.Logger

	titleWorkers      int
	collectionWorkers int
}

// New creates a resolver over the given metadata source.
func New(metadata domain.MetadataSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		metadata:          metadata,
		logger:            logger,
		titleWorkers:      defaultTitleWorkers,
		collectionWorkers: defaultCollectionWorkers,
	}
}

// candidate accumulates membership for one discovered collection id.
// Accumulation is keyed by collection id and commutative, so worker
// completion order never affects the result.
type candidate struct {
	name    string
	present []string
}

// ResolveOnline discovers collections by fetching each item's title record
// and then the canonical member list of every qualifying collection.
// Title lookups fan out across a bounded worker pool; individual fetch
// failures degrade to absent and do not abort the pass.
func (r *Resolver) ResolveOnline(ctx context.Context, items []domain.LibraryItem, idmap identity.Map) ([]domain.CollectionDescriptor, error) {
	type job struct {
		localID string
		tmdbID  int
	}

	jobs := make([]job, 0, len(items))
	for _, it := range items {
		if id, ok := identity.TMDBID(it); ok {
			jobs = append(jobs, job{localID: it.ID, tmdbID: id})
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu         sync.Mutex
		candidates = make(map[int]*candidate)
		fatal      error
		fatalOnce  sync.Once
	)
	fail := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			cancel()
		})
	}

	// Pass 1: title lookups, accumulating (collection id -> present ids).
	jobCh := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < r.titleWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				title, err := r.metadata.Movie(ctx, j.tmdbID)
				if err != nil {
					fail(err)
					return
				}
				if title == nil || title.CollectionID == 0 {
					continue
				}
				mu.Lock()
				c, ok := candidates[title.CollectionID]
				if !ok {
					c = &candidate{name: title.CollectionName}
					candidates[title.CollectionID] = c
				}
				c.present = append(c.present, j.localID)
				mu.Unlock()
			}
		}()
	}

	for _, j := range jobs {
		select {
		case jobCh <- j:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobCh)
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}

	// Pass 2: canonical member lists for collections that pass the gate.
	qualifying := make([]int, 0, len(candidates))
	for cid, c := range candidates {
		if len(c.present) >= MinMovies {
			qualifying = append(qualifying, cid)
		} else {
			r.logger.Debug("skipping collection below threshold", "collection", cid, "name", c.name, "present", len(c.present))
		}
	}
	sort.Ints(qualifying)

	descriptors := make([]domain.CollectionDescriptor, len(qualifying))
	cidCh := make(chan int)
	idxByCID := make(map[int]int, len(qualifying))
	for i, cid := range qualifying {
		idxByCID[cid] = i
	}

	for i := 0; i < r.collectionWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cid := range cidCh {
				c := candidates[cid]
				desc := domain.CollectionDescriptor{
					CollectionID: cid,
					Name:         c.name,
					PresentIDs:   sortedCopy(c.present),
				}

				col, err := r.metadata.Collection(ctx, cid)
				if err != nil {
					fail(err)
					return
				}
				if col != nil {
					if col.Name != "" {
						desc.Name = col.Name
					}
					desc.CanonicalIDs, desc.Missing = splitMembers(col.Parts, idmap)
				}

				mu.Lock()
				descriptors[idxByCID[cid]] = desc
				mu.Unlock()
			}
		}()
	}

	for _, cid := range qualifying {
		select {
		case cidCh <- cid:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(cidCh)
	wg.Wait()

	if fatal != nil {
		return nil, fatal
	}

	sortDescriptors(descriptors)
	return descriptors, nil
}

// ResolveSnapshot intersects each snapshot collection's declared members
// against the library. No network, no cache.
func (r *Resolver) ResolveSnapshot(snap *snapshot.Snapshot, idmap identity.Map) []domain.CollectionDescriptor {
	var descriptors []domain.CollectionDescriptor

	for _, cid := range snap.IDs() {
		entry := snap.Collections[cid]

		var present []string
		for _, m := range entry.Movies {
			present = append(present, idmap[m.ID]...)
		}
		if len(present) < MinMovies {
			continue
		}

		canonical, missing := splitMembers(entry.Movies, idmap)
		descriptors = append(descriptors, domain.CollectionDescriptor{
			CollectionID: cid,
			Name:         entry.Name,
			PresentIDs:   sortedCopy(present),
			CanonicalIDs: canonical,
			Missing:      missing,
		})
	}

	sortDescriptors(descriptors)
	return descriptors
}

// splitMembers partitions a canonical member list into the full id set and
// the members absent from the library.
func splitMembers(parts []domain.CollectionMember, idmap identity.Map) ([]int, []domain.CollectionMember) {
	canonical := make([]int, 0, len(parts))
	var missing []domain.CollectionMember
	for _, p := range parts {
		canonical = append(canonical, p.ID)
		if !idmap.Contains(p.ID) {
			missing = append(missing, p)
		}
	}
	return canonical, missing
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

func sortDescriptors(descriptors []domain.CollectionDescriptor) {
	sort.Slice(descriptors, func(i, j int) bool {
		if descriptors[i].Name != descriptors[j].Name {
			return descriptors[i].Name < descriptors[j].Name
		}
		return descriptors[i].CollectionID < descriptors[j].CollectionID
	})
}
