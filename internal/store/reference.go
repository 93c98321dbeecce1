package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/monay/risk-engine/internal/domain"
)

// LoadActivePatterns loads the active pattern definitions for a library
// snapshot. Clauses are stored as a JSONB array per pattern.
func (s *Store) LoadActivePatterns(ctx context.Context) ([]domain.PatternDefinition, error) {
	const q = `
		SELECT id, name, kind, clauses, risk_level, match_threshold, active
		FROM fraud_patterns
		WHERE active = TRUE
		ORDER BY id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()

	var defs []domain.PatternDefinition
	for rows.Next() {
		var (
			def     domain.PatternDefinition
			clauses []byte
		)
		if err := rows.Scan(&def.ID, &def.Name, &def.Kind, &clauses,
			&def.RiskLevel, &def.MatchThreshold, &def.Active); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal(clauses, &def.Clauses); err != nil {
			return nil, fmt.Errorf("decode pattern %s clauses: %w", def.ID, err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// LoadActiveEntries loads the active watchlist entries for an index snapshot
func (s *Store) LoadActiveEntries(ctx context.Context) ([]domain.WatchlistEntry, error) {
	const q = `
		SELECT list_name, entity_id, entity_kind, active
		FROM watchlist_entries
		WHERE active = TRUE`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	defer rows.Close()

	var entries []domain.WatchlistEntry
	for rows.Next() {
		var e domain.WatchlistEntry
		if err := rows.Scan(&e.List, &e.EntityID, &e.Kind, &e.Active); err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetProfile loads the persisted risk profile for an account, nil without
// error when no profile exists yet
func (s *Store) GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error) {
	const q = `
		SELECT account_id, amounts, typical_hours, typical_categories,
		       tx_count_1h, tx_count_24h, tx_count_7d,
		       volume_1h, volume_24h, volume_7d,
		       window_1h_start, window_24h_start, window_7d_start,
		       sample_count, risk_score, updated_at
		FROM user_risk_profiles
		WHERE account_id = $1`

	var (
		p          domain.UserRiskProfile
		amounts    []byte
		hours      []byte
		categories []byte
	)
	err := s.pool.QueryRow(ctx, q, accountID).Scan(
		&p.AccountID, &amounts, &hours, &categories,
		&p.TxCount1h, &p.TxCount24h, &p.TxCount7d,
		&p.Volume1h, &p.Volume24h, &p.Volume7d,
		&p.Window1hStart, &p.Window24hStart, &p.Window7dStart,
		&p.SampleCount, &p.RiskScore, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	if err := json.Unmarshal(amounts, &p.Amounts); err != nil {
		return nil, fmt.Errorf("decode profile amounts: %w", err)
	}
	if err := json.Unmarshal(hours, &p.TypicalHours); err != nil {
		return nil, fmt.Errorf("decode profile hours: %w", err)
	}
	if err := json.Unmarshal(categories, &p.TypicalCategories); err != nil {
		return nil, fmt.Errorf("decode profile categories: %w", err)
	}
	return &p, nil
}

// UpsertProfile writes the profile back, replacing any previous row
func (s *Store) UpsertProfile(ctx context.Context, p *domain.UserRiskProfile) error {
	amounts, err := json.Marshal(p.Amounts)
	if err != nil {
		return fmt.Errorf("encode profile amounts: %w", err)
	}
	hours, err := json.Marshal(p.TypicalHours)
	if err != nil {
		return fmt.Errorf("encode profile hours: %w", err)
	}
	categories, err := json.Marshal(p.TypicalCategories)
	if err != nil {
		return fmt.Errorf("encode profile categories: %w", err)
	}

	const q = `
		INSERT INTO user_risk_profiles
			(account_id, amounts, typical_hours, typical_categories,
			 tx_count_1h, tx_count_24h, tx_count_7d,
			 volume_1h, volume_24h, volume_7d,
			 window_1h_start, window_24h_start, window_7d_start,
			 sample_count, risk_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (account_id) DO UPDATE SET
			amounts = $2, typical_hours = $3, typical_categories = $4,
			tx_count_1h = $5, tx_count_24h = $6, tx_count_7d = $7,
			volume_1h = $8, volume_24h = $9, volume_7d = $10,
			window_1h_start = $11, window_24h_start = $12, window_7d_start = $13,
			sample_count = $14, risk_score = $15, updated_at = $16`

	_, err = s.pool.Exec(ctx, q,
		p.AccountID, amounts, hours, categories,
		p.TxCount1h, p.TxCount24h, p.TxCount7d,
		p.Volume1h, p.Volume24h, p.Volume7d,
		p.Window1hStart, p.Window24hStart, p.Window7dStart,
		p.SampleCount, p.RiskScore, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// BuildProfileFromHistory seeds a fresh profile from the account's last 90
// days of completed transactions, used when the cache misses both memory
// and the profile table
func (s *Store) BuildProfileFromHistory(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error) {
	const q = `
		SELECT amount, merchant_category, occurred_at
		FROM transactions
		WHERE account_id = $1
		  AND status = 'COMPLETED'
		  AND occurred_at >= NOW() - INTERVAL '90 days'
		ORDER BY occurred_at`

	rows, err := s.pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}
	defer rows.Close()

	p := domain.NewUserRiskProfile(accountID)
	for rows.Next() {
		tx := domain.Transaction{AccountID: accountID}
		if err := rows.Scan(&tx.Amount, &tx.Merchant.Category, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		p.Observe(&tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
