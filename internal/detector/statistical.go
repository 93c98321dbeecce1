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

// BaselineStore provides the historical baseline queries the statistical
// detector compares against
type BaselineStore interface {
	AccountStats(ctx context.Context, accountID uuid.UUID, window time.Duration) (*domain.AccountStats, error)
	CategoryShare(ctx context.Context, accountID uuid.UUID, category string, window time.Duration) (float64, int, error)
}

// StatisticalDetector flags transactions that deviate from the account's
// statistical baseline: amount z-score, hour-of-day distance, and rare
// merchant categories. Accounts with thin history produce a clean PASS;
// abstaining beats guessing from noise.
type StatisticalDetector struct {
	store BaselineStore
	cfg   *config.DetectorsConfig
	log   *logger.Logger
}

// NewStatisticalDetector creates the statistical anomaly detector
func NewStatisticalDetector(store BaselineStore, cfg *config.DetectorsConfig, log *logger.Logger) *StatisticalDetector {
	return &StatisticalDetector{
		store: store,
		cfg:   cfg,
		log:   log.Named(domain.DetectorStatistics),
	}
}

func (d *StatisticalDetector) Name() string { return domain.DetectorStatistics }

func (d *StatisticalDetector) Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())
	tx := in.Transaction
	window := time.Duration(d.cfg.BaselineWindowDays) * 24 * time.Hour

	stats, err := d.store.AccountStats(ctx, tx.AccountID, window)
	if err != nil {
		return nil, fmt.Errorf("baseline stats: %w", err)
	}

	// Not enough history to form a baseline
	if stats.Count < d.cfg.MinHistory {
		return finding, nil
	}

	// Amount z-score against the account's own distribution
	stddev := stats.StdDev
	if stddev <= 0 {
		stddev = 1
	}
	z := math.Abs(tx.Amount-stats.Mean) / stddev
	if z > d.cfg.AmountZScore {
		score := math.Min(z*5, d.cfg.AmountScoreCap)
		finding.AddDetail("amount_anomaly",
			fmt.Sprintf("amount %.2f is %.1f standard deviations from mean %.2f", tx.Amount, z, stats.Mean),
			score)
	}

	// Plain absolute distance from the account's mean active hour. Wrapping
	// around midnight would under-count late-night activity against an
	// early-morning mean.
	hourDev := math.Abs(float64(tx.Hour()) - stats.MeanHour)
	if hourDev > d.cfg.HourDeviation {
		finding.AddDetail("time_anomaly",
			fmt.Sprintf("hour %d deviates %.1fh from typical hour %.1f", tx.Hour(), hourDev, stats.MeanHour),
			d.cfg.TimeAnomalyScore)
	}

	// Rare merchant category for this account
	share, total, err := d.store.CategoryShare(ctx, tx.AccountID, tx.Merchant.Category, window)
	if err != nil {
		return nil, fmt.Errorf("category share: %w", err)
	}
	if total >= d.cfg.RareCategoryMinTx && share < d.cfg.RareCategoryShare &&
		tx.Merchant.Category != stats.ModalCategory {
		finding.AddDetail("category_anomaly",
			fmt.Sprintf("category %s is %.1f%% of the account's activity", tx.Merchant.Category, share*100),
			d.cfg.CategoryScore)
	}

	return finding, nil
}
