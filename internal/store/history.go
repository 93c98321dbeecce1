package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/domain"
)

// AccountStats computes the statistical baseline over the account's
// completed transactions within the window
func (s *Store) AccountStats(ctx context.Context, accountID uuid.UUID, window time.Duration) (*domain.AccountStats, error) {
	const q = `
		SELECT
			COUNT(*),
			COALESCE(AVG(amount), 0),
			COALESCE(STDDEV(amount), 0),
			COALESCE(MIN(amount), 0),
			COALESCE(MAX(amount), 0),
			COALESCE(AVG(EXTRACT(HOUR FROM occurred_at)), 0),
			COALESCE(MODE() WITHIN GROUP (ORDER BY merchant_category), '')
		FROM transactions
		WHERE account_id = $1
		  AND status = 'COMPLETED'
		  AND occurred_at >= NOW() - $2::interval`

	stats := &domain.AccountStats{}
	err := s.pool.QueryRow(ctx, q, accountID, window.String()).Scan(
		&stats.Count, &stats.Mean, &stats.StdDev,
		&stats.Min, &stats.Max, &stats.MeanHour, &stats.ModalCategory,
	)
	if err != nil {
		return nil, fmt.Errorf("account stats: %w", err)
	}
	return stats, nil
}

// CategoryShare returns the fraction of the account's windowed
// transactions in the given merchant category, plus the total count
func (s *Store) CategoryShare(ctx context.Context, accountID uuid.UUID, category string, window time.Duration) (float64, int, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE merchant_category = $2),
			COUNT(*)
		FROM transactions
		WHERE account_id = $1
		  AND occurred_at >= NOW() - $3::interval`

	var inCategory, total int
	if err := s.pool.QueryRow(ctx, q, accountID, category, window.String()).Scan(&inCategory, &total); err != nil {
		return 0, 0, fmt.Errorf("category share: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(inCategory) / float64(total), total, nil
}

// TransactionFrequency counts the account's transactions within the window
func (s *Store) TransactionFrequency(ctx context.Context, accountID uuid.UUID, window time.Duration) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM transactions
		WHERE account_id = $1
		  AND occurred_at >= NOW() - $2::interval`

	var count int
	if err := s.pool.QueryRow(ctx, q, accountID, window.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("transaction frequency: %w", err)
	}
	return count, nil
}

// RecentCategories returns the account's most recent merchant categories,
// newest first, bounded by limit
func (s *Store) RecentCategories(ctx context.Context, accountID uuid.UUID, limit int) ([]string, error) {
	const q = `
		SELECT merchant_category
		FROM transactions
		WHERE account_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("recent categories: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// RecentLocated returns the account's recent transactions that carry a
// geolocation, newest first
func (s *Store) RecentLocated(ctx context.Context, accountID uuid.UUID, since time.Time, limit int) ([]domain.LocatedTransaction, error) {
	const q = `
		SELECT id, merchant_lat, merchant_lon, occurred_at
		FROM transactions
		WHERE account_id = $1
		  AND occurred_at >= $2
		  AND merchant_lat IS NOT NULL
		ORDER BY occurred_at DESC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, accountID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent located: %w", err)
	}
	defer rows.Close()

	var out []domain.LocatedTransaction
	for rows.Next() {
		var lt domain.LocatedTransaction
		if err := rows.Scan(&lt.TransactionID, &lt.Location.Lat, &lt.Location.Lon, &lt.Timestamp); err != nil {
			return nil, fmt.Errorf("recent located: %w", err)
		}
		out = append(out, lt)
	}
	return out, rows.Err()
}

// RecentActivity returns the account's transaction count and distinct
// category count within the window
func (s *Store) RecentActivity(ctx context.Context, accountID uuid.UUID, window time.Duration) (txCount, categoryCount int, err error) {
	const q = `
		SELECT COUNT(*), COUNT(DISTINCT merchant_category)
		FROM transactions
		WHERE account_id = $1
		  AND occurred_at >= NOW() - $2::interval`

	if err := s.pool.QueryRow(ctx, q, accountID, window.String()).Scan(&txCount, &categoryCount); err != nil {
		return 0, 0, fmt.Errorf("recent activity: %w", err)
	}
	return txCount, categoryCount, nil
}

// WithdrawalStats returns the account's cash-out count and volume within
// the window
func (s *Store) WithdrawalStats(ctx context.Context, accountID uuid.UUID, window time.Duration) (count int, volume float64, err error) {
	const q = `
		SELECT COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE account_id = $1
		  AND (type = 'WITHDRAWAL' OR merchant_type = 'ATM')
		  AND occurred_at >= NOW() - $2::interval`

	if err := s.pool.QueryRow(ctx, q, accountID, window.String()).Scan(&count, &volume); err != nil {
		return 0, 0, fmt.Errorf("withdrawal stats: %w", err)
	}
	return count, volume, nil
}

// ResaleStats summarizes the account's grocery purchases and cash
// withdrawals under a benefit program within the window
func (s *Store) ResaleStats(ctx context.Context, accountID uuid.UUID, programType string, window time.Duration) (groceryCount, withdrawalCount int, maxGrocery float64, err error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE merchant_category = 'GROCERY'),
			COUNT(*) FILTER (WHERE type = 'WITHDRAWAL'),
			COALESCE(MAX(amount) FILTER (WHERE merchant_category = 'GROCERY'), 0)
		FROM transactions
		WHERE account_id = $1
		  AND program_type = $2
		  AND occurred_at >= NOW() - $3::interval`

	if err := s.pool.QueryRow(ctx, q, accountID, programType, window.String()).Scan(&groceryCount, &withdrawalCount, &maxGrocery); err != nil {
		return 0, 0, 0, fmt.Errorf("resale stats: %w", err)
	}
	return groceryCount, withdrawalCount, maxGrocery, nil
}

// ActiveEnrollments counts the account's active enrollments in a program
func (s *Store) ActiveEnrollments(ctx context.Context, accountID uuid.UUID, programType string) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM program_enrollments
		WHERE account_id = $1
		  AND program_type = $2
		  AND status = 'ACTIVE'`

	var count int
	if err := s.pool.QueryRow(ctx, q, accountID, programType).Scan(&count); err != nil {
		return 0, fmt.Errorf("active enrollments: %w", err)
	}
	return count, nil
}

// ConnectedAccounts counts distinct other accounts sharing a merchant with
// the subject within the window, and their shared transaction volume
func (s *Store) ConnectedAccounts(ctx context.Context, accountID uuid.UUID, window time.Duration) (connected, sharedTxns int, err error) {
	const q = `
		WITH account_merchants AS (
			SELECT DISTINCT merchant_id
			FROM transactions
			WHERE account_id = $1
			  AND merchant_id <> ''
			  AND occurred_at >= NOW() - $2::interval
		)
		SELECT
			COUNT(DISTINCT t.account_id),
			COUNT(*)
		FROM transactions t
		JOIN account_merchants am ON t.merchant_id = am.merchant_id
		WHERE t.account_id <> $1
		  AND t.occurred_at >= NOW() - $2::interval`

	if err := s.pool.QueryRow(ctx, q, accountID, window.String()).Scan(&connected, &sharedTxns); err != nil {
		return 0, 0, fmt.Errorf("connected accounts: %w", err)
	}
	return connected, sharedTxns, nil
}

// MerchantFraudStats summarizes the merchant's fraud history within the
// window
func (s *Store) MerchantFraudStats(ctx context.Context, merchantID string, window time.Duration) (*domain.MerchantFraudStats, error) {
	const q = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status IN ('BLOCKED', 'FRAUD')),
			COUNT(DISTINCT account_id),
			COALESCE(AVG(amount), 0)
		FROM transactions
		WHERE merchant_id = $1
		  AND occurred_at >= NOW() - $2::interval`

	stats := &domain.MerchantFraudStats{}
	err := s.pool.QueryRow(ctx, q, merchantID, window.String()).Scan(
		&stats.TotalTransactions, &stats.FraudCount, &stats.UniqueAccounts, &stats.AvgAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("merchant fraud stats: %w", err)
	}
	return stats, nil
}

// CollusionPeak returns the largest number of distinct accounts and their
// transaction count observed in any single hourly bucket at the merchant
// within the window
func (s *Store) CollusionPeak(ctx context.Context, merchantID string, window time.Duration) (accounts, txns int, err error) {
	const q = `
		WITH hourly AS (
			SELECT
				DATE_TRUNC('hour', occurred_at) AS bucket,
				COUNT(DISTINCT account_id) AS account_count,
				COUNT(*) AS tx_count
			FROM transactions
			WHERE merchant_id = $1
			  AND occurred_at >= NOW() - $2::interval
			GROUP BY DATE_TRUNC('hour', occurred_at)
		)
		SELECT COALESCE(MAX(account_count), 0),
		       COALESCE(MAX(tx_count), 0)
		FROM hourly`

	if err := s.pool.QueryRow(ctx, q, merchantID, window.String()).Scan(&accounts, &txns); err != nil {
		return 0, 0, fmt.Errorf("collusion peak: %w", err)
	}
	return accounts, txns, nil
}

// IsKnownFraudMerchant checks the merchant against the known-fraud table
func (s *Store) IsKnownFraudMerchant(ctx context.Context, merchantID, merchantName string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM known_fraud_merchants
			WHERE merchant_id = $1 OR ($2 <> '' AND merchant_name ILIKE $2)
		)`

	var known bool
	if err := s.pool.QueryRow(ctx, q, merchantID, merchantName).Scan(&known); err != nil {
		return false, fmt.Errorf("known fraud merchant: %w", err)
	}
	return known, nil
}

// SimilarConfirmedFrauds counts recent confirmed frauds in the same
// program with a near-identical amount
func (s *Store) SimilarConfirmedFrauds(ctx context.Context, programType string, amount, tolerance float64, window time.Duration) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM confirmed_frauds
		WHERE program_type = $1
		  AND ABS(amount - $2) < $3
		  AND occurred_at >= NOW() - $4::interval`

	var count int
	if err := s.pool.QueryRow(ctx, q, programType, amount, tolerance, window.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("similar confirmed frauds: %w", err)
	}
	return count, nil
}

// HistoryFeatures returns the aggregate inputs the predictive scorer uses
func (s *Store) HistoryFeatures(ctx context.Context, accountID uuid.UUID) (*domain.HistoryFeatures, error) {
	const q = `
		SELECT
			COUNT(*) FILTER (WHERE occurred_at >= NOW() - INTERVAL '24 hours'),
			COALESCE(AVG(amount) FILTER (WHERE occurred_at >= NOW() - INTERVAL '7 days'), 0),
			COUNT(DISTINCT merchant_id) FILTER (WHERE occurred_at >= NOW() - INTERVAL '30 days'),
			COALESCE(MAX(amount) FILTER (WHERE occurred_at >= NOW() - INTERVAL '30 days'), 0)
		FROM transactions
		WHERE account_id = $1
		  AND occurred_at >= NOW() - INTERVAL '30 days'`

	f := &domain.HistoryFeatures{}
	err := s.pool.QueryRow(ctx, q, accountID).Scan(
		&f.TxCount24h, &f.AvgAmount7d, &f.UniqueMerchants30, &f.MaxAmount30d,
	)
	if err != nil {
		return nil, fmt.Errorf("history features: %w", err)
	}
	return f, nil
}

// IsNewMerchant reports whether the account has no prior history with the
// merchant before the last day
func (s *Store) IsNewMerchant(ctx context.Context, accountID uuid.UUID, merchantID string) (bool, error) {
	if merchantID == "" {
		return true, nil
	}
	const q = `
		SELECT NOT EXISTS (
			SELECT 1 FROM transactions
			WHERE account_id = $1
			  AND merchant_id = $2
			  AND occurred_at < NOW() - INTERVAL '1 day'
		)`

	var isNew bool
	if err := s.pool.QueryRow(ctx, q, accountID, merchantID).Scan(&isNew); err != nil {
		return false, fmt.Errorf("new merchant check: %w", err)
	}
	return isNew, nil
}

// MerchantRiskScore returns the merchant's average assessed risk over the
// trailing 90 days; unknown merchants read as medium risk
func (s *Store) MerchantRiskScore(ctx context.Context, merchantID string) (float64, error) {
	if merchantID == "" {
		return 50, nil
	}
	const q = `
		SELECT COALESCE(AVG(ra.total_score), 30)
		FROM risk_assessments ra
		JOIN transactions t ON t.id = ra.transaction_id
		WHERE t.merchant_id = $1
		  AND ra.created_at >= NOW() - INTERVAL '90 days'`

	var score float64
	if err := s.pool.QueryRow(ctx, q, merchantID).Scan(&score); err != nil {
		return 0, fmt.Errorf("merchant risk score: %w", err)
	}
	return score, nil
}
