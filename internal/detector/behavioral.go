package detector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// BehaviorHistory provides the bounded historical reads behind the
// account-takeover and benefit-abuse checks
type BehaviorHistory interface {
	RecentLocated(ctx context.Context, accountID uuid.UUID, since time.Time, limit int) ([]domain.LocatedTransaction, error)
	RecentActivity(ctx context.Context, accountID uuid.UUID, window time.Duration) (txCount, categoryCount int, err error)
	WithdrawalStats(ctx context.Context, accountID uuid.UUID, window time.Duration) (count int, volume float64, err error)
	ResaleStats(ctx context.Context, accountID uuid.UUID, programType string, window time.Duration) (groceryCount, withdrawalCount int, maxGrocery float64, err error)
	ActiveEnrollments(ctx context.Context, accountID uuid.UUID, programType string) (int, error)
}

// BehavioralDetector compares a transaction against the account's cached
// in-memory profile rather than historical queries, trading baseline depth
// for latency. On top of the profile deltas it runs the account-takeover
// and benefit-abuse indicator checks.
type BehavioralDetector struct {
	history BehaviorHistory
	cfg     *config.DetectorsConfig
	log     *logger.Logger
}

// NewBehavioralDetector creates the behavioral deviation detector
func NewBehavioralDetector(history BehaviorHistory, cfg *config.DetectorsConfig, log *logger.Logger) *BehavioralDetector {
	return &BehavioralDetector{
		history: history,
		cfg:     cfg,
		log:     log.Named(domain.DetectorBehavior),
	}
}

func (d *BehavioralDetector) Name() string { return domain.DetectorBehavior }

func (d *BehavioralDetector) Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())
	tx := in.Transaction

	d.checkProfileDeltas(in.Profile, tx, finding)

	if err := d.checkTakeover(ctx, tx, finding); err != nil {
		return nil, err
	}
	if err := d.checkBenefitAbuse(ctx, tx, finding); err != nil {
		return nil, err
	}

	return finding, nil
}

// checkProfileDeltas flags spending, hour and category changes relative to
// the cached profile. A profile with no samples abstains.
func (d *BehavioralDetector) checkProfileDeltas(p *domain.UserRiskProfile, tx *domain.Transaction, finding *domain.RiskFinding) {
	if p == nil || p.SampleCount == 0 {
		return
	}

	dev := p.AmountDeviation(tx.Amount)
	if dev > d.cfg.SpendingDeviation {
		score := math.Min(dev*5, d.cfg.SpendingScoreCap)
		finding.AddDetail("spending_change",
			fmt.Sprintf("amount %.2f deviates %.1f standard deviations from typical spend", tx.Amount, dev),
			score)
	}

	if !p.HasHour(tx.Hour()) {
		finding.AddDetail("time_change",
			fmt.Sprintf("hour %d is outside the account's typical active hours", tx.Hour()),
			d.cfg.HourChangeScore)
	}

	if tx.Merchant.Category != "" && !p.HasCategory(tx.Merchant.Category) {
		finding.AddDetail("category_change",
			fmt.Sprintf("category %s is new for this account", tx.Merchant.Category),
			d.cfg.CategoryChangeScore)
	}
}

// checkTakeover runs the impossible-travel and rapid-diversification
// indicators over the last hour of activity
func (d *BehavioralDetector) checkTakeover(ctx context.Context, tx *domain.Transaction, finding *domain.RiskFinding) error {
	if tx.Merchant.Location != nil {
		since := tx.Timestamp.Add(-time.Hour)
		located, err := d.history.RecentLocated(ctx, tx.AccountID, since, 10)
		if err != nil {
			return fmt.Errorf("recent located: %w", err)
		}
		for _, prev := range located {
			hours := tx.Timestamp.Sub(prev.Timestamp).Hours()
			if hours <= 0 {
				continue
			}
			speed := distanceMiles(prev.Location, *tx.Merchant.Location) / hours
			if speed > d.cfg.TravelSpeedMph {
				finding.AddDetail("impossible_travel",
					fmt.Sprintf("implied travel speed %.0f mph since transaction %s", speed, prev.TransactionID),
					d.cfg.TakeoverScore)
				finding.Status = domain.FindingFail
				break
			}
		}
	}

	txCount, catCount, err := d.history.RecentActivity(ctx, tx.AccountID, time.Hour)
	if err != nil {
		return fmt.Errorf("recent activity: %w", err)
	}
	if txCount+1 > d.cfg.DiversificationTxns && catCount > d.cfg.DiversificationCats {
		finding.AddDetail("rapid_diversification",
			fmt.Sprintf("%d transactions across %d categories in the last hour", txCount+1, catCount),
			d.cfg.TakeoverScore)
	}

	return nil
}

// checkBenefitAbuse runs the excessive cash-out, benefit-resale and
// duplicate enrollment indicators
func (d *BehavioralDetector) checkBenefitAbuse(ctx context.Context, tx *domain.Transaction, finding *domain.RiskFinding) error {
	if tx.IsCashOut() {
		count, volume, err := d.history.WithdrawalStats(ctx, tx.AccountID, 7*24*time.Hour)
		if err != nil {
			return fmt.Errorf("withdrawal stats: %w", err)
		}
		if count+1 > d.cfg.CashOutMaxCount || volume+tx.Amount > d.cfg.CashOutMaxVolume {
			finding.AddDetail("excessive_cash_out",
				fmt.Sprintf("%d withdrawals totaling %.2f in the trailing 7 days", count+1, volume+tx.Amount),
				d.cfg.CashOutScore)
		}
	}

	if tx.ProgramType != "" {
		// Large grocery purchases interleaved with cash withdrawals are the
		// buy-sell signature of benefit resale
		grocery, withdrawals, maxGrocery, err := d.history.ResaleStats(ctx, tx.AccountID, tx.ProgramType, 7*24*time.Hour)
		if err != nil {
			return fmt.Errorf("resale stats: %w", err)
		}
		if grocery > d.cfg.ResaleGroceryCount && withdrawals > d.cfg.ResaleWithdrawals && maxGrocery > d.cfg.ResaleMaxGrocery {
			finding.AddDetail("benefit_resale",
				fmt.Sprintf("%d grocery purchases up to %.2f alongside %d withdrawals in the trailing 7 days",
					grocery, maxGrocery, withdrawals),
				d.cfg.ResaleScore)
		}

		enrollments, err := d.history.ActiveEnrollments(ctx, tx.AccountID, tx.ProgramType)
		if err != nil {
			return fmt.Errorf("active enrollments: %w", err)
		}
		if enrollments > 1 {
			finding.AddDetail("duplicate_enrollment",
				fmt.Sprintf("%d active enrollments in program %s", enrollments, tx.ProgramType),
				d.cfg.DuplicateClaimScore)
			finding.Status = domain.FindingFail
		}
	}

	return nil
}
