package detector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/patterns"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

type stubRuleHistory struct {
	frequency  int
	categories []string
}

func (s *stubRuleHistory) TransactionFrequency(context.Context, uuid.UUID, time.Duration) (int, error) {
	return s.frequency, nil
}

func (s *stubRuleHistory) RecentCategories(context.Context, uuid.UUID, int) ([]string, error) {
	return s.categories, nil
}

func ruleInput(tx *domain.Transaction, defs ...domain.PatternDefinition) *Input {
	return &Input{
		Transaction: tx,
		Patterns:    &patterns.Snapshot{Patterns: defs, LoadedAt: time.Now()},
	}
}

func TestRuleMatcherFullMatch(t *testing.T) {
	d := NewRuleMatcher(&stubRuleHistory{}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "large-night-atm",
		Name:           "large night ATM withdrawal",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelHigh,
		MatchThreshold: 100,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseAmountRange, MinAmount: 400},
			{Kind: domain.ClauseTimeOfDay, StartHour: 22, EndHour: 5},
		},
	}

	tx := makeTx(500, 2, "ATM")
	f, err := d.Detect(context.Background(), ruleInput(tx, pattern))
	require.NoError(t, err)

	require.Len(t, f.Details, 1)
	// HIGH weight 20 at 100% confidence
	assert.Equal(t, 20.0, f.Details[0].Score)
	assert.Equal(t, domain.FindingFail, f.Status)
}

func TestRuleMatcherPartialMatchScalesScore(t *testing.T) {
	d := NewRuleMatcher(&stubRuleHistory{}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "partial",
		Name:           "partial pattern",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelMedium,
		MatchThreshold: 50,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseAmountRange, MinAmount: 100},
			{Kind: domain.ClauseTimeOfDay, StartHour: 0, EndHour: 6},
		},
	}

	// Amount matches, hour does not: 50% confidence clears the threshold
	tx := makeTx(200, 14, "GROCERY")
	f, err := d.Detect(context.Background(), ruleInput(tx, pattern))
	require.NoError(t, err)

	require.Len(t, f.Details, 1)
	// MEDIUM weight 10 at 50% confidence
	assert.Equal(t, 5.0, f.Details[0].Score)
	assert.Equal(t, domain.FindingWarning, f.Status)
}

func TestRuleMatcherBelowThresholdIgnored(t *testing.T) {
	d := NewRuleMatcher(&stubRuleHistory{}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "strict",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelHigh,
		MatchThreshold: 80,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseAmountRange, MinAmount: 100},
			{Kind: domain.ClauseTimeOfDay, StartHour: 0, EndHour: 6},
		},
	}

	tx := makeTx(200, 14, "GROCERY")
	f, err := d.Detect(context.Background(), ruleInput(tx, pattern))
	require.NoError(t, err)
	assert.Empty(t, f.Details)
	assert.Equal(t, domain.FindingPass, f.Status)
}

func TestRuleMatcherFrequencyCountsIncomingTransaction(t *testing.T) {
	// 9 persisted plus the incoming one meets a threshold of 10
	d := NewRuleMatcher(&stubRuleHistory{frequency: 9}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "rapid-fire",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelMedium,
		MatchThreshold: 100,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseFrequency, WindowHours: 1, Threshold: 10},
		},
	}

	tx := makeTx(20, 14, "GROCERY")
	f, err := d.Detect(context.Background(), ruleInput(tx, pattern))
	require.NoError(t, err)
	require.Len(t, f.Details, 1)
}

func TestRuleMatcherSequenceClause(t *testing.T) {
	// History newest first: GAS then GROCERY happened before; current is
	// JEWELRY, so the trail reads GROCERY > GAS > JEWELRY
	d := NewRuleMatcher(&stubRuleHistory{categories: []string{"GAS", "GROCERY"}}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "test-purchase-chain",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelHigh,
		MatchThreshold: 100,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseSequence, SequenceLength: 3, Sequences: []string{"GROCERY>GAS>JEWELRY"}},
		},
	}

	tx := makeTx(900, 14, "JEWELRY")
	f, err := d.Detect(context.Background(), ruleInput(tx, pattern))
	require.NoError(t, err)
	require.Len(t, f.Details, 1)
	assert.Equal(t, domain.FindingFail, f.Status)
}

func TestRuleMatcherUnknownClauseIsError(t *testing.T) {
	d := NewRuleMatcher(&stubRuleHistory{}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "bad-data",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelLow,
		MatchThreshold: 100,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseKind("GRAPH_DISTANCE")},
		},
	}

	_, err := d.Detect(context.Background(), ruleInput(makeTx(20, 14, "GROCERY"), pattern))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown clause kind")
}

func TestRuleMatcherSkipsNonRulePatterns(t *testing.T) {
	d := NewRuleMatcher(&stubRuleHistory{}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:        "stat-only",
		Kind:      domain.PatternStatistical,
		RiskLevel: domain.RiskLevelHigh,
	}

	f, err := d.Detect(context.Background(), ruleInput(makeTx(20, 14, "GROCERY"), pattern))
	require.NoError(t, err)
	assert.Empty(t, f.Details)
}

func TestHourInWindow(t *testing.T) {
	tests := []struct {
		hour, start, end int
		want             bool
	}{
		{3, 0, 6, true},
		{7, 0, 6, false},
		{23, 22, 4, true},
		{2, 22, 4, true},
		{12, 22, 4, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hourInWindow(tt.hour, tt.start, tt.end),
			"hour %d in [%d..%d]", tt.hour, tt.start, tt.end)
	}
}

func TestRuleMatcherHighRiskAreaClause(t *testing.T) {
	d := NewRuleMatcher(&stubRuleHistory{}, logger.Nop())

	pattern := domain.PatternDefinition{
		ID:             "border-area",
		Kind:           domain.PatternRuleBased,
		RiskLevel:      domain.RiskLevelMedium,
		MatchThreshold: 100,
		Clauses: []domain.PredicateClause{
			{Kind: domain.ClauseLocation, Condition: domain.LocationHighRiskArea, Areas: []string{"NV", "AZ"}},
		},
	}

	tx := makeTx(20, 14, "GROCERY")
	tx.Merchant.State = "NV"
	f, err := d.Detect(context.Background(), ruleInput(tx, pattern))
	require.NoError(t, err)
	require.Len(t, f.Details, 1)
}
