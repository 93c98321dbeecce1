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

// HourlyCounter exposes the trailing 24 hourly transaction counts for an
// account, oldest bucket first
type HourlyCounter interface {
	HourlyCounts(ctx context.Context, accountID uuid.UUID, now time.Time) ([]int, error)
}

// VelocityDetector flags bursts in per-account transaction frequency over a
// trailing 24-hour window of hourly buckets. The statistical threshold is
// paired with an absolute floor because near-zero-variance distributions
// (new or quiet accounts) make avg+k*stddev meaningless.
type VelocityDetector struct {
	counter HourlyCounter
	cfg     *config.DetectorsConfig
	log     *logger.Logger
}

// NewVelocityDetector creates the velocity/burst detector
func NewVelocityDetector(counter HourlyCounter, cfg *config.DetectorsConfig, log *logger.Logger) *VelocityDetector {
	return &VelocityDetector{
		counter: counter,
		cfg:     cfg,
		log:     log.Named(domain.DetectorVelocity),
	}
}

func (d *VelocityDetector) Name() string { return domain.DetectorVelocity }

func (d *VelocityDetector) Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())
	tx := in.Transaction

	counts, err := d.counter.HourlyCounts(ctx, tx.AccountID, tx.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("hourly counts: %w", err)
	}
	if len(counts) == 0 {
		return finding, nil
	}

	// Current hour is the newest bucket; the incoming transaction is not
	// recorded yet, so count it in.
	current := counts[len(counts)-1] + 1

	// Floor stddev at 1 so a quiet or empty window never reads a lone
	// transaction as a burst.
	avg, stddev := meanStdDev(counts[:len(counts)-1])
	if stddev < 1 {
		stddev = 1
	}
	threshold := avg + d.cfg.BurstStdDevFactor*stddev

	burst := float64(current) > threshold || current > d.cfg.BurstAbsoluteFloor
	if !burst {
		return finding, nil
	}

	excess := float64(current) - avg
	score := math.Min(excess*2, d.cfg.BurstScoreCap)
	finding.AddDetail("velocity_burst",
		fmt.Sprintf("%d transactions this hour against trailing average %.1f", current, avg),
		score)
	return finding, nil
}

func meanStdDev(counts []int) (avg, stddev float64) {
	if len(counts) == 0 {
		return 0, 0
	}
	sum := 0
	for _, c := range counts {
		sum += c
	}
	avg = float64(sum) / float64(len(counts))

	variance := 0.0
	for _, c := range counts {
		diff := float64(c) - avg
		variance += diff * diff
	}
	return avg, math.Sqrt(variance / float64(len(counts)))
}
