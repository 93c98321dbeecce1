package watchlist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

type stubSource struct {
	entries []domain.WatchlistEntry
	err     error
}

func (s *stubSource) LoadActiveEntries(context.Context) ([]domain.WatchlistEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func TestIndexReload(t *testing.T) {
	source := &stubSource{entries: []domain.WatchlistEntry{
		{List: domain.ListSanctionedCountries, EntityID: "KP", Kind: domain.EntityCountry, Active: true},
		{List: domain.ListSanctionedMerchants, EntityID: "merch-9", Kind: domain.EntityMerchant, Active: true},
	}}
	idx := NewIndex(source, logger.Nop())

	require.NoError(t, idx.Reload(context.Background()))

	snap := idx.Snapshot()
	assert.Equal(t, 2, snap.Size())
	assert.True(t, snap.Contains(domain.ListSanctionedCountries, "KP"))
	assert.True(t, snap.Contains(domain.ListSanctionedMerchants, "merch-9"))
	assert.False(t, snap.Contains(domain.ListSanctionedAccounts, "KP"))
}

func TestIndexNormalizesLookups(t *testing.T) {
	snap := NewSnapshotFromEntries([]domain.WatchlistEntry{
		{List: domain.ListSanctionedCountries, EntityID: " kp ", Kind: domain.EntityCountry, Active: true},
	})

	assert.True(t, snap.Contains(domain.ListSanctionedCountries, "KP"))
	assert.True(t, snap.Contains(domain.ListSanctionedCountries, "kp"))
	assert.False(t, snap.Contains(domain.ListSanctionedCountries, ""))
}

func TestIndexSkipsInactiveEntries(t *testing.T) {
	snap := NewSnapshotFromEntries([]domain.WatchlistEntry{
		{List: domain.ListSanctionedCountries, EntityID: "KP", Kind: domain.EntityCountry, Active: false},
	})

	assert.Zero(t, snap.Size())
	assert.False(t, snap.Contains(domain.ListSanctionedCountries, "KP"))
}

func TestIndexFailedReloadKeepsLastGood(t *testing.T) {
	source := &stubSource{entries: []domain.WatchlistEntry{
		{List: domain.ListSanctionedCountries, EntityID: "KP", Kind: domain.EntityCountry, Active: true},
	}}
	idx := NewIndex(source, logger.Nop())
	require.NoError(t, idx.Reload(context.Background()))

	source.err = errors.New("connection refused")
	require.Error(t, idx.Reload(context.Background()))

	assert.True(t, idx.Snapshot().Contains(domain.ListSanctionedCountries, "KP"))
}

func TestIndexCapturedSnapshotSurvivesReload(t *testing.T) {
	source := &stubSource{entries: []domain.WatchlistEntry{
		{List: domain.ListSanctionedCountries, EntityID: "KP", Kind: domain.EntityCountry, Active: true},
	}}
	idx := NewIndex(source, logger.Nop())
	require.NoError(t, idx.Reload(context.Background()))

	captured := idx.Snapshot()

	source.entries = []domain.WatchlistEntry{
		{List: domain.ListSanctionedCountries, EntityID: "IR", Kind: domain.EntityCountry, Active: true},
	}
	require.NoError(t, idx.Reload(context.Background()))

	assert.True(t, captured.Contains(domain.ListSanctionedCountries, "KP"))
	assert.False(t, idx.Snapshot().Contains(domain.ListSanctionedCountries, "KP"))
	assert.True(t, idx.Snapshot().Contains(domain.ListSanctionedCountries, "IR"))
}
