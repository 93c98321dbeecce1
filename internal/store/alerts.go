package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/monay/risk-engine/internal/domain"
)

// SaveAlert inserts a new alert row
func (s *Store) SaveAlert(ctx context.Context, a *domain.Alert) error {
	const q = `
		INSERT INTO alerts
			(id, assessment_id, transaction_id, account_id, level, status,
			 message, recommended_action, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		a.ID, a.AssessmentID, a.TransactionID, a.AccountID, a.Level, a.Status,
		a.Message, a.RecommendedAction, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save alert: %w", err)
	}
	return nil
}

// GetAlert loads one alert by id
func (s *Store) GetAlert(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	const q = `
		SELECT id, assessment_id, transaction_id, account_id, level, status,
		       message, recommended_action, created_at, closed_at, resolution
		FROM alerts
		WHERE id = $1`

	var a domain.Alert
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&a.ID, &a.AssessmentID, &a.TransactionID, &a.AccountID, &a.Level, &a.Status,
		&a.Message, &a.RecommendedAction, &a.CreatedAt, &a.ClosedAt, &a.Resolution,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

// UpdateAlert persists a status change made on an alert loaded via GetAlert
func (s *Store) UpdateAlert(ctx context.Context, a *domain.Alert) error {
	const q = `
		UPDATE alerts
		SET status = $2, closed_at = $3, resolution = $4
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, a.ID, a.Status, a.ClosedAt, a.Resolution)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

// HasOpenAlert reports whether an open alert already exists for the
// transaction at the given level, used by the executor for dedupe
func (s *Store) HasOpenAlert(ctx context.Context, transactionID uuid.UUID, level domain.RiskLevel) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM alerts
			WHERE transaction_id = $1 AND level = $2 AND status = 'OPEN'
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, q, transactionID, level).Scan(&exists); err != nil {
		return false, fmt.Errorf("check open alert: %w", err)
	}
	return exists, nil
}

// OpenAlertsOlderThan lists open LOW and MEDIUM alerts created before the
// cutoff, candidates for scheduler auto-close
func (s *Store) OpenAlertsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Alert, error) {
	const q = `
		SELECT id, assessment_id, transaction_id, account_id, level, status,
		       message, recommended_action, created_at, closed_at, resolution
		FROM alerts
		WHERE status = 'OPEN'
		  AND level IN ('LOW', 'MEDIUM')
		  AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale open alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

// ClosedAlertsBefore lists closed alerts resolved before the cutoff,
// candidates for archival
func (s *Store) ClosedAlertsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Alert, error) {
	const q = `
		SELECT id, assessment_id, transaction_id, account_id, level, status,
		       message, recommended_action, created_at, closed_at, resolution
		FROM alerts
		WHERE status = 'CLOSED'
		  AND closed_at < $1
		ORDER BY closed_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list archivable alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func scanAlerts(rows pgx.Rows) ([]*domain.Alert, error) {
	var alerts []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(
			&a.ID, &a.AssessmentID, &a.TransactionID, &a.AccountID, &a.Level, &a.Status,
			&a.Message, &a.RecommendedAction, &a.CreatedAt, &a.ClosedAt, &a.Resolution,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}
