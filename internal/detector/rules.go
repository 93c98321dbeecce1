package detector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// RuleHistory is the slice of transaction history the rule matcher needs
// for frequency and sequence clauses
type RuleHistory interface {
	TransactionFrequency(ctx context.Context, accountID uuid.UUID, window time.Duration) (int, error)
	RecentCategories(ctx context.Context, accountID uuid.UUID, limit int) ([]string, error)
}

// RuleMatcher evaluates the active rule-based pattern definitions against a
// transaction. Each pattern matches when the fraction of satisfied clauses
// reaches its threshold; the confidence of a match is that fraction, so a
// partially satisfied pattern contributes proportionally less.
type RuleMatcher struct {
	history RuleHistory
	log     *logger.Logger
}

// NewRuleMatcher creates the rule-based pattern detector
func NewRuleMatcher(history RuleHistory, log *logger.Logger) *RuleMatcher {
	return &RuleMatcher{
		history: history,
		log:     log.Named(domain.DetectorRules),
	}
}

func (d *RuleMatcher) Name() string { return domain.DetectorRules }

// Detect evaluates every active rule pattern in the captured snapshot
func (d *RuleMatcher) Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())

	for _, pattern := range in.Patterns.OfKind(domain.PatternRuleBased) {
		if len(pattern.Clauses) == 0 {
			continue
		}

		satisfied := 0
		for _, clause := range pattern.Clauses {
			hit, err := d.evaluateClause(ctx, in, &clause)
			if err != nil {
				return nil, fmt.Errorf("pattern %s: %w", pattern.ID, err)
			}
			if hit {
				satisfied++
			}
		}

		confidence := float64(satisfied) / float64(len(pattern.Clauses)) * 100
		if confidence < pattern.MatchThreshold {
			continue
		}

		score := pattern.LevelWeight() * confidence / 100
		finding.AddDetail("pattern_match",
			fmt.Sprintf("pattern %q matched with %.0f%% confidence", pattern.Name, confidence),
			score)
		if pattern.RiskLevel == domain.RiskLevelHigh || pattern.RiskLevel == domain.RiskLevelCritical {
			finding.Status = domain.FindingFail
		}
	}

	return finding, nil
}

// evaluateClause dispatches on the clause kind. The switch is exhaustive
// over the closed ClauseKind set; an unknown kind is a data error, not a
// silent non-match.
func (d *RuleMatcher) evaluateClause(ctx context.Context, in *Input, clause *domain.PredicateClause) (bool, error) {
	tx := in.Transaction

	switch clause.Kind {
	case domain.ClauseAmountRange:
		if clause.MaxAmount > 0 && tx.Amount > clause.MaxAmount {
			return false, nil
		}
		return tx.Amount >= clause.MinAmount, nil

	case domain.ClauseMerchantType:
		for _, t := range clause.MerchantTypes {
			if strings.EqualFold(t, tx.Merchant.Type) || strings.EqualFold(t, tx.Merchant.Category) {
				return true, nil
			}
		}
		return false, nil

	case domain.ClauseTimeOfDay:
		return hourInWindow(tx.Hour(), clause.StartHour, clause.EndHour), nil

	case domain.ClauseFrequency:
		window := time.Duration(clause.WindowHours) * time.Hour
		count, err := d.history.TransactionFrequency(ctx, tx.AccountID, window)
		if err != nil {
			return false, fmt.Errorf("frequency clause: %w", err)
		}
		// The incoming transaction itself is not persisted yet
		return count+1 >= clause.Threshold, nil

	case domain.ClauseLocation:
		return evaluateLocation(tx, clause), nil

	case domain.ClauseSequence:
		if clause.SequenceLength < 2 {
			return false, nil
		}
		recent, err := d.history.RecentCategories(ctx, tx.AccountID, clause.SequenceLength-1)
		if err != nil {
			return false, fmt.Errorf("sequence clause: %w", err)
		}
		return matchesSequence(tx.Merchant.Category, recent, clause.Sequences), nil

	default:
		return false, fmt.Errorf("unknown clause kind %q", clause.Kind)
	}
}

// hourInWindow handles windows that wrap midnight, e.g. 22..4
func hourInWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour <= end
	}
	return hour >= start || hour <= end
}

func evaluateLocation(tx *domain.Transaction, clause *domain.PredicateClause) bool {
	switch clause.Condition {
	case domain.LocationOutsideRadius:
		if tx.Merchant.Location == nil {
			return false
		}
		center := domain.GeoPoint{Lat: clause.CenterLat, Lon: clause.CenterLon}
		return distanceMiles(center, *tx.Merchant.Location) > clause.RadiusMiles

	case domain.LocationHighRiskArea:
		for _, area := range clause.Areas {
			if strings.EqualFold(area, tx.Merchant.State) || strings.EqualFold(area, tx.Merchant.Country) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// matchesSequence checks whether the account's trailing categories, ending
// with the current transaction, spell one of the defined sequences. Recent
// categories arrive newest first; sequences are stored oldest first as
// ">"-joined category lists.
func matchesSequence(current string, recentNewestFirst []string, sequences []string) bool {
	trail := make([]string, 0, len(recentNewestFirst)+1)
	for i := len(recentNewestFirst) - 1; i >= 0; i-- {
		trail = append(trail, recentNewestFirst[i])
	}
	trail = append(trail, current)

	for _, seq := range sequences {
		want := strings.Split(seq, ">")
		if len(want) > len(trail) {
			continue
		}
		match := true
		offset := len(trail) - len(want)
		for i, cat := range want {
			if !strings.EqualFold(strings.TrimSpace(cat), trail[offset+i]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
