package patterns

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// Source loads pattern definitions from the persistent reference table
type Source interface {
	LoadActivePatterns(ctx context.Context) ([]domain.PatternDefinition, error)
}

// Snapshot is one immutable generation of the pattern library. Readers
// capture a snapshot at the start of an evaluation and keep using it even
// if a reload completes mid-flight.
type Snapshot struct {
	Patterns []domain.PatternDefinition
	LoadedAt time.Time
}

// OfKind returns the patterns of one kind within this snapshot
func (s *Snapshot) OfKind(kind domain.PatternKind) []domain.PatternDefinition {
	var out []domain.PatternDefinition
	for _, p := range s.Patterns {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Library holds the active pattern snapshot and swaps it atomically on
// reload. A failed reload keeps the last known good snapshot serving.
type Library struct {
	source Source
	log    *logger.Logger
	snap   atomic.Value // *Snapshot
}

// NewLibrary creates an empty library; call Reload before first use
func NewLibrary(source Source, log *logger.Logger) *Library {
	l := &Library{
		source: source,
		log:    log.Named("pattern_library"),
	}
	l.snap.Store(&Snapshot{})
	return l
}

// Snapshot returns the current active snapshot
func (l *Library) Snapshot() *Snapshot {
	return l.snap.Load().(*Snapshot)
}

// Reload replaces the active snapshot wholesale. On failure the previous
// snapshot remains active and the error wraps ErrPatternLibraryStale.
func (l *Library) Reload(ctx context.Context) error {
	defs, err := l.source.LoadActivePatterns(ctx)
	if err != nil {
		l.log.Warn("pattern reload failed, keeping previous snapshot", logger.ErrorField(err))
		return fmt.Errorf("%w: %v", domain.ErrPatternLibraryStale, err)
	}

	l.snap.Store(&Snapshot{
		Patterns: defs,
		LoadedAt: time.Now(),
	})
	l.log.SnapshotReloaded("patterns", len(defs))
	return nil
}
