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

// FeatureVector is the fixed input contract for predictive scorers. A real
// trained model replaces HeuristicScorer without touching the extractor or
// the detector.
type FeatureVector struct {
	HourOfDay  int     `json:"hour_of_day"`
	DayOfWeek  int     `json:"day_of_week"`
	IsWeekend  bool    `json:"is_weekend"`
	IsNight    bool    `json:"is_night"`
	Amount     float64 `json:"amount"`
	LogAmount  float64 `json:"log_amount"`
	IsRound    bool    `json:"is_round"`
	IsLarge    bool    `json:"is_large"`

	TxCount24h        int     `json:"tx_count_24h"`
	AvgAmount7d       float64 `json:"avg_amount_7d"`
	UniqueMerchants30 int     `json:"unique_merchants_30d"`
	MaxAmount30d      float64 `json:"max_amount_30d"`

	IsNewMerchant bool    `json:"is_new_merchant"`
	MerchantRisk  float64 `json:"merchant_risk"`
}

// Scorer turns a feature vector into a fraud probability in [0,1] plus a
// confidence value
type Scorer interface {
	Score(ctx context.Context, features *FeatureVector) (probability, confidence float64, err error)
}

// FeatureStore provides the historical aggregates the extractor folds into
// the vector
type FeatureStore interface {
	HistoryFeatures(ctx context.Context, accountID uuid.UUID) (*domain.HistoryFeatures, error)
	IsNewMerchant(ctx context.Context, accountID uuid.UUID, merchantID string) (bool, error)
	MerchantRiskScore(ctx context.Context, merchantID string) (float64, error)
}

// PredictiveDetector extracts the feature vector, asks the pluggable scorer
// for a probability, and converts it into a score contribution weighted by
// configuration.
type PredictiveDetector struct {
	store  FeatureStore
	scorer Scorer
	cfg    *config.DetectorsConfig
	log    *logger.Logger
}

// NewPredictiveDetector creates the predictive scorer detector
func NewPredictiveDetector(store FeatureStore, scorer Scorer, cfg *config.DetectorsConfig, log *logger.Logger) *PredictiveDetector {
	return &PredictiveDetector{
		store:  store,
		scorer: scorer,
		cfg:    cfg,
		log:    log.Named(domain.DetectorPredictive),
	}
}

func (d *PredictiveDetector) Name() string { return domain.DetectorPredictive }

func (d *PredictiveDetector) Detect(ctx context.Context, in *Input) (*domain.RiskFinding, error) {
	finding := newFinding(d.Name())

	features, err := d.ExtractFeatures(ctx, in.Transaction)
	if err != nil {
		return nil, err
	}

	probability, confidence, err := d.scorer.Score(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("predictive score: %w", err)
	}

	if probability > 0 {
		finding.AddDetail("model_score",
			fmt.Sprintf("fraud probability %.2f at confidence %.2f", probability, confidence),
			probability*d.cfg.PredictiveWeight)
	}
	return finding, nil
}

// ExtractFeatures builds the feature vector for a transaction
func (d *PredictiveDetector) ExtractFeatures(ctx context.Context, tx *domain.Transaction) (*FeatureVector, error) {
	history, err := d.store.HistoryFeatures(ctx, tx.AccountID)
	if err != nil {
		return nil, fmt.Errorf("history features: %w", err)
	}
	isNew, err := d.store.IsNewMerchant(ctx, tx.AccountID, tx.Merchant.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("new merchant: %w", err)
	}
	merchantRisk, err := d.store.MerchantRiskScore(ctx, tx.Merchant.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("merchant risk: %w", err)
	}

	hour := tx.Hour()
	weekday := int(tx.Timestamp.Weekday())
	return &FeatureVector{
		HourOfDay: hour,
		DayOfWeek: weekday,
		IsWeekend: weekday == int(time.Saturday) || weekday == int(time.Sunday),
		IsNight:   hour < 6 || hour >= 23,
		Amount:    tx.Amount,
		LogAmount: math.Log1p(tx.Amount),
		IsRound:   tx.IsRoundAmount(),
		IsLarge:   tx.Amount > 500,

		TxCount24h:        history.TxCount24h,
		AvgAmount7d:       history.AvgAmount7d,
		UniqueMerchants30: history.UniqueMerchants30,
		MaxAmount30d:      history.MaxAmount30d,

		IsNewMerchant: isNew,
		MerchantRisk:  merchantRisk,
	}, nil
}

// HeuristicScorer is the reference scorer: a small weighted rule set
// standing in for a trained model. Deterministic on its inputs.
type HeuristicScorer struct{}

// NewHeuristicScorer creates the reference heuristic scorer
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

const heuristicConfidence = 0.75

// Score applies the weighted rules and caps the probability below 1
func (s *HeuristicScorer) Score(_ context.Context, f *FeatureVector) (float64, float64, error) {
	probability := 0.0

	if f.IsNight && f.IsLarge {
		probability += 0.20
	}
	if f.TxCount24h > 20 {
		probability += 0.15
	}
	if f.IsNewMerchant && f.AvgAmount7d > 0 && f.Amount > f.AvgAmount7d*3 {
		probability += 0.25
	}
	if f.MerchantRisk > 70 {
		probability += 0.20
	}

	return math.Min(probability, 0.99), heuristicConfidence, nil
}
