package detector

import (
	"time"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
)

func testDetectorsConfig() *config.DetectorsConfig {
	return &config.DetectorsConfig{
		BaselineWindowDays: 90,
		MinHistory:         10,
		AmountZScore:       3.0,
		AmountScoreCap:     25.0,
		HourDeviation:      8.0,
		TimeAnomalyScore:   10.0,
		RareCategoryShare:  0.05,
		RareCategoryMinTx:  20,
		CategoryScore:      15.0,

		SpendingDeviation:   3.0,
		SpendingScoreCap:    20.0,
		HourChangeScore:     5.0,
		CategoryChangeScore: 5.0,
		TravelSpeedMph:      500.0,
		TakeoverScore:       30.0,
		DiversificationTxns: 5,
		DiversificationCats: 3,
		CashOutMaxCount:     5,
		CashOutMaxVolume:    1000.0,
		CashOutScore:        20.0,
		ResaleGroceryCount:  3,
		ResaleWithdrawals:   2,
		ResaleMaxGrocery:    200.0,
		ResaleScore:         25.0,
		DuplicateClaimScore: 30.0,

		BurstAbsoluteFloor: 10,
		BurstStdDevFactor:  2.0,
		BurstScoreCap:      30.0,

		NetworkWindowDays:  30,
		RingConnections:    5,
		RingSharedTxns:     20,
		RingScore:          35.0,
		MerchantFraudRate:  0.10,
		MerchantFraudCount: 10,
		MerchantScoreCap:   50.0,
		CollusionAccounts:  5,
		CollusionTxns:      10,
		CollusionScore:     25.0,
		KnownFraudScore:    40.0,

		AccountMatchScore:  50.0,
		MerchantMatchScore: 30.0,
		CountryMatchScore:  40.0,
		StateMatchScore:    20.0,

		PredictiveWeight: 50.0,
	}
}

func makeTx(amount float64, hour int, category string) *domain.Transaction {
	ts := time.Date(2026, 3, 10, hour, 15, 0, 0, time.UTC)
	return &domain.Transaction{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Amount:    amount,
		Currency:  "USD",
		Type:      domain.TransactionPurchase,
		Merchant: domain.MerchantInfo{
			MerchantID: "merch-001",
			Name:       "Corner Grocer",
			Type:       "POS",
			Category:   category,
			Country:    "US",
			State:      "CA",
		},
		Timestamp: ts,
	}
}
