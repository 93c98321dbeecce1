package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// AmountStats holds rolling statistics over an account's transaction amounts
type AmountStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// UserRiskProfile is the fast in-memory behavioral profile kept per account.
// It is created lazily on first transaction, updated after every transaction
// and evicted from the cache after an idle TTL; the persisted copy remains
// authoritative.
type UserRiskProfile struct {
	AccountID uuid.UUID `json:"account_id" db:"account_id"`

	Amounts           AmountStats     `json:"amounts" db:"amounts"`
	TypicalHours      map[int]bool    `json:"typical_hours" db:"typical_hours"`
	TypicalCategories map[string]bool `json:"typical_categories" db:"typical_categories"`

	// Short-term counters
	TxCount1h  int     `json:"tx_count_1h" db:"tx_count_1h"`
	TxCount24h int     `json:"tx_count_24h" db:"tx_count_24h"`
	TxCount7d  int     `json:"tx_count_7d" db:"tx_count_7d"`
	Volume1h   float64 `json:"volume_1h" db:"volume_1h"`
	Volume24h  float64 `json:"volume_24h" db:"volume_24h"`
	Volume7d   float64 `json:"volume_7d" db:"volume_7d"`

	// Window anchors for the short-term counters; counters reset when a
	// new transaction falls outside the anchored window.
	Window1hStart  time.Time `json:"window_1h_start" db:"window_1h_start"`
	Window24hStart time.Time `json:"window_24h_start" db:"window_24h_start"`
	Window7dStart  time.Time `json:"window_7d_start" db:"window_7d_start"`

	SampleCount int       `json:"sample_count" db:"sample_count"`
	RiskScore   float64   `json:"risk_score" db:"risk_score"` // decayed
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NewUserRiskProfile creates an empty profile for an account
func NewUserRiskProfile(accountID uuid.UUID) *UserRiskProfile {
	return &UserRiskProfile{
		AccountID:         accountID,
		TypicalHours:      make(map[int]bool),
		TypicalCategories: make(map[string]bool),
	}
}

// Clone returns a deep copy safe to hand to concurrent readers
func (p *UserRiskProfile) Clone() *UserRiskProfile {
	cp := *p
	cp.TypicalHours = make(map[int]bool, len(p.TypicalHours))
	for h, v := range p.TypicalHours {
		cp.TypicalHours[h] = v
	}
	cp.TypicalCategories = make(map[string]bool, len(p.TypicalCategories))
	for c, v := range p.TypicalCategories {
		cp.TypicalCategories[c] = v
	}
	return &cp
}

// HasHour reports whether the hour is in the account's typical active set
func (p *UserRiskProfile) HasHour(hour int) bool {
	return p.TypicalHours[hour]
}

// HasCategory reports whether the merchant category is typical for the account
func (p *UserRiskProfile) HasCategory(category string) bool {
	return p.TypicalCategories[category]
}

// AmountDeviation returns the amount's distance from the profile mean in
// standard deviations
func (p *UserRiskProfile) AmountDeviation(amount float64) float64 {
	stddev := p.Amounts.StdDev
	if stddev <= 0 {
		stddev = 1
	}
	return math.Abs(amount-p.Amounts.Mean) / stddev
}

// Observe folds a transaction into the profile's rolling statistics using
// Welford's online update, and marks its hour and category as typical.
func (p *UserRiskProfile) Observe(tx *Transaction) {
	p.SampleCount++
	if p.SampleCount == 1 {
		p.Amounts.Mean = tx.Amount
		p.Amounts.Min = tx.Amount
		p.Amounts.Max = tx.Amount
	} else {
		delta := tx.Amount - p.Amounts.Mean
		p.Amounts.Mean += delta / float64(p.SampleCount)
		// Rolling variance approximation over the retained window
		variance := p.Amounts.StdDev*p.Amounts.StdDev*float64(p.SampleCount-2) +
			delta*(tx.Amount-p.Amounts.Mean)
		if p.SampleCount > 1 {
			p.Amounts.StdDev = math.Sqrt(math.Max(variance/float64(p.SampleCount-1), 0))
		}
		p.Amounts.Min = math.Min(p.Amounts.Min, tx.Amount)
		p.Amounts.Max = math.Max(p.Amounts.Max, tx.Amount)
	}

	p.TypicalHours[tx.Hour()] = true
	p.TypicalCategories[tx.Merchant.Category] = true

	p.rollWindows(tx.Timestamp)
	p.TxCount1h++
	p.TxCount24h++
	p.TxCount7d++
	p.Volume1h += tx.Amount
	p.Volume24h += tx.Amount
	p.Volume7d += tx.Amount

	p.UpdatedAt = tx.Timestamp
}

// rollWindows resets any short-term counter whose anchored window has
// elapsed by the given timestamp
func (p *UserRiskProfile) rollWindows(now time.Time) {
	if now.Sub(p.Window1hStart) >= time.Hour {
		p.Window1hStart = now
		p.TxCount1h = 0
		p.Volume1h = 0
	}
	if now.Sub(p.Window24hStart) >= 24*time.Hour {
		p.Window24hStart = now
		p.TxCount24h = 0
		p.Volume24h = 0
	}
	if now.Sub(p.Window7dStart) >= 7*24*time.Hour {
		p.Window7dStart = now
		p.TxCount7d = 0
		p.Volume7d = 0
	}
}

// ObserveAssessment decays the profile risk score toward the latest
// assessment total (0.9 old, 0.1 new)
func (p *UserRiskProfile) ObserveAssessment(totalScore float64) {
	p.RiskScore = p.RiskScore*0.9 + totalScore*0.1
}

// AccountStats is the historical baseline computed by the store over a
// rolling window of completed transactions
type AccountStats struct {
	Count         int     `json:"count"`
	Mean          float64 `json:"mean"`
	StdDev        float64 `json:"std_dev"`
	Min           float64 `json:"min"`
	Max           float64 `json:"max"`
	MeanHour      float64 `json:"mean_hour"`
	ModalCategory string  `json:"modal_category"`
}

// MerchantFraudStats summarizes a merchant's fraud history
type MerchantFraudStats struct {
	TotalTransactions int     `json:"total_transactions"`
	FraudCount        int     `json:"fraud_count"`
	UniqueAccounts    int     `json:"unique_accounts"`
	AvgAmount         float64 `json:"avg_amount"`
}

// FraudRate returns blocked+confirmed-fraud transactions over total
func (m *MerchantFraudStats) FraudRate() float64 {
	if m.TotalTransactions == 0 {
		return 0
	}
	return float64(m.FraudCount) / float64(m.TotalTransactions)
}

// LocatedTransaction is a historical transaction with its geolocation,
// used for impossible-travel checks
type LocatedTransaction struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Location      GeoPoint  `json:"location"`
	Timestamp     time.Time `json:"timestamp"`
}

// HistoryFeatures are the aggregate inputs to the predictive scorer
type HistoryFeatures struct {
	TxCount24h        int     `json:"tx_count_24h"`
	AvgAmount7d       float64 `json:"avg_amount_7d"`
	UniqueMerchants30 int     `json:"unique_merchants_30d"`
	MaxAmount30d      float64 `json:"max_amount_30d"`
}
