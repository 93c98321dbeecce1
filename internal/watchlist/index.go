package watchlist

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// Source loads watchlist entries from the persistent reference table
type Source interface {
	LoadActiveEntries(ctx context.Context) ([]domain.WatchlistEntry, error)
}

// Snapshot is one immutable map-of-sets generation of the watchlist index,
// keyed by list name. Lookups are exact-match only; fuzzy name matching is
// a known gap carried over from the prior system.
type Snapshot struct {
	lists    map[string]map[string]struct{}
	LoadedAt time.Time
}

// Contains reports whether the entity is on the named list
func (s *Snapshot) Contains(list, entityID string) bool {
	if entityID == "" {
		return false
	}
	set, ok := s.lists[list]
	if !ok {
		return false
	}
	_, hit := set[normalize(entityID)]
	return hit
}

// Size returns the total entry count across all lists
func (s *Snapshot) Size() int {
	n := 0
	for _, set := range s.lists {
		n += len(set)
	}
	return n
}

// Index holds the active watchlist snapshot, replaced wholesale on refresh
type Index struct {
	source Source
	log    *logger.Logger
	snap   atomic.Value // *Snapshot
}

// NewIndex creates an empty index; call Reload before first use
func NewIndex(source Source, log *logger.Logger) *Index {
	i := &Index{
		source: source,
		log:    log.Named("watchlist_index"),
	}
	i.snap.Store(&Snapshot{lists: map[string]map[string]struct{}{}})
	return i
}

// Snapshot returns the current active snapshot
func (i *Index) Snapshot() *Snapshot {
	return i.snap.Load().(*Snapshot)
}

// Reload rebuilds the map-of-sets from the source and swaps it in
// atomically; readers holding the old snapshot are unaffected.
func (i *Index) Reload(ctx context.Context) error {
	entries, err := i.source.LoadActiveEntries(ctx)
	if err != nil {
		i.log.Warn("watchlist reload failed, keeping previous snapshot", logger.ErrorField(err))
		return fmt.Errorf("watchlist reload: %w", err)
	}

	lists := make(map[string]map[string]struct{})
	for _, e := range entries {
		if !e.Active {
			continue
		}
		set, ok := lists[e.List]
		if !ok {
			set = make(map[string]struct{})
			lists[e.List] = set
		}
		set[normalize(e.EntityID)] = struct{}{}
	}

	snap := &Snapshot{lists: lists, LoadedAt: time.Now()}
	i.snap.Store(snap)
	i.log.SnapshotReloaded("watchlists", snap.Size())
	return nil
}

// NewSnapshotFromEntries builds a standalone snapshot; used in tests and
// for static list bootstrapping
func NewSnapshotFromEntries(entries []domain.WatchlistEntry) *Snapshot {
	lists := make(map[string]map[string]struct{})
	for _, e := range entries {
		if !e.Active {
			continue
		}
		set, ok := lists[e.List]
		if !ok {
			set = make(map[string]struct{})
			lists[e.List] = set
		}
		set[normalize(e.EntityID)] = struct{}{}
	}
	return &Snapshot{lists: lists, LoadedAt: time.Now()}
}

func normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
