package detector

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// GraphStore provides the cross-account aggregate queries behind the
// relationship checks. These are the engine's most expensive reads.
type GraphStore interface {
	ConnectedAccounts(ctx context.Context, accountID uuid.UUID, window time.Duration) (connected, sharedTxns int, err error)
	MerchantFraudStats(ctx context.Context, merchantID string, window time.Duration) (*domain.MerchantFraudStats, error)
	CollusionPeak(ctx context.Context, merchantID string, window time.Duration) (accounts, txns int, err error)
	IsKnownFraudMerchant(ctx context.Context, merchantID, merchantName string) (bool, error)
	SimilarConfirmedFrauds(ctx context.Context, programType string, amount, tolerance float64, window time.Duration) (int, error)
}

// NetworkDetector runs the fraud-ring, high-risk-merchant, collusion and
// known-fraud cross-reference checks. All store access goes through a
// circuit breaker: when the aggregate queries start failing or timing out,
// the breaker trips and the engine gets a fast ERROR finding instead of a
// detector that burns the whole latency budget every transaction.
type NetworkDetector struct {
	store   GraphStore
	breaker *gobreaker.CircuitBreaker
	cfg     *config.DetectorsConfig
	log     *logger.Logger
}

// NewNetworkDetector creates the network/relationship analyzer
func NewNetworkDetector(store GraphStore, cfg *config.DetectorsConfig, log *logger.Logger) *NetworkDetector {
	named := log.Named(domain.DetectorNetwork)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "network-graph-store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 > counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			named.Warn("circuit breaker state change",
				logger.StringField("breaker", name),
				logger.StringField("from", from.String()),
				logger.StringField("to", to.String()))
		},
	})

	return &NetworkDetector{
		store:   store,
		breaker: breaker,
		cfg:     cfg,
		log:     named,
	}
}

func (d *NetworkDetector) Name() string { return domain.DetectorNetwork }

func (d *NetworkDetector) Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	result, err := d.breaker.Execute(func() (interface{}, error) {
		return d.detect(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.RiskFinding), nil
}

func (d *NetworkDetector) detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())
	tx := in.Transaction
	window := time.Duration(d.cfg.NetworkWindowDays) * 24 * time.Hour

	// Fraud ring: other accounts reachable via shared merchants
	connected, sharedTxns, err := d.store.ConnectedAccounts(ctx, tx.AccountID, window)
	if err != nil {
		return nil, fmt.Errorf("connected accounts: %w", err)
	}
	if connected > d.cfg.RingConnections && sharedTxns > d.cfg.RingSharedTxns {
		finding.AddDetail("fraud_ring",
			fmt.Sprintf("%d connected accounts over %d shared transactions", connected, sharedTxns),
			d.cfg.RingScore)
		finding.Status = domain.FindingFail
	}

	if tx.Merchant.MerchantID != "" {
		if err := d.checkMerchant(ctx, tx, window, finding); err != nil {
			return nil, err
		}
	}

	// Confirmed frauds with a near-identical amount in the same program
	if tx.ProgramType != "" {
		similar, err := d.store.SimilarConfirmedFrauds(ctx, tx.ProgramType, tx.Amount, tx.Amount*0.05, 30*24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("similar frauds: %w", err)
		}
		if similar >= 3 {
			finding.AddDetail("similar_confirmed_frauds",
				fmt.Sprintf("%d confirmed frauds with near-identical amounts in program %s", similar, tx.ProgramType),
				math.Min(float64(similar)*5, d.cfg.KnownFraudScore))
		}
	}

	return finding, nil
}

func (d *NetworkDetector) checkMerchant(ctx context.Context, tx *domain.Transaction, window time.Duration, finding *domain.RiskFinding) error {
	merchantID := tx.Merchant.MerchantID

	known, err := d.store.IsKnownFraudMerchant(ctx, merchantID, tx.Merchant.Name)
	if err != nil {
		return fmt.Errorf("known fraud merchant: %w", err)
	}
	if known {
		finding.AddDetail("known_fraud_merchant",
			fmt.Sprintf("merchant %s is on the known-fraud list", merchantID),
			d.cfg.KnownFraudScore)
		finding.Status = domain.FindingFail
	}

	stats, err := d.store.MerchantFraudStats(ctx, merchantID, window)
	if err != nil {
		return fmt.Errorf("merchant fraud stats: %w", err)
	}
	rate := stats.FraudRate()
	if rate > d.cfg.MerchantFraudRate || stats.FraudCount > d.cfg.MerchantFraudCount {
		score := math.Min(rate*100, d.cfg.MerchantScoreCap)
		finding.AddDetail("high_risk_merchant",
			fmt.Sprintf("merchant fraud rate %.1f%% over %d transactions", rate*100, stats.TotalTransactions),
			score)
		finding.Status = domain.FindingFail
	}

	accounts, txns, err := d.store.CollusionPeak(ctx, merchantID, window)
	if err != nil {
		return fmt.Errorf("collusion peak: %w", err)
	}
	if accounts > d.cfg.CollusionAccounts && txns > d.cfg.CollusionTxns {
		finding.AddDetail("collusion",
			fmt.Sprintf("%d accounts made %d transactions at the merchant within one hour", accounts, txns),
			d.cfg.CollusionScore)
	}

	return nil
}
