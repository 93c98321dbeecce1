package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/monay/risk-engine/internal/domain"
)

// SaveAssessment persists one risk assessment with its findings, alerts
// and actions as structured sub-records
func (s *Store) SaveAssessment(ctx context.Context, a *domain.RiskAssessment) error {
	findings, err := json.Marshal(a.Findings)
	if err != nil {
		return fmt.Errorf("encode findings: %w", err)
	}
	alerts, err := json.Marshal(a.Alerts)
	if err != nil {
		return fmt.Errorf("encode alerts: %w", err)
	}
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return fmt.Errorf("encode actions: %w", err)
	}

	const q = `
		INSERT INTO risk_assessments
			(id, transaction_id, account_id, total_score, risk_level,
			 findings, alerts, actions, degraded, evaluation_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.pool.Exec(ctx, q,
		a.ID, a.TransactionID, a.AccountID, a.TotalScore, a.RiskLevel,
		findings, alerts, actions, a.Degraded, a.EvaluationMs, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save assessment: %w", err)
	}
	return nil
}

// GetAssessment loads one assessment by transaction id
func (s *Store) GetAssessment(ctx context.Context, transactionID uuid.UUID) (*domain.RiskAssessment, error) {
	const q = `
		SELECT id, transaction_id, account_id, total_score, risk_level,
		       findings, alerts, actions, degraded, evaluation_ms, created_at
		FROM risk_assessments
		WHERE transaction_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var (
		a        domain.RiskAssessment
		findings []byte
		alerts   []byte
		actions  []byte
	)
	err := s.pool.QueryRow(ctx, q, transactionID).Scan(
		&a.ID, &a.TransactionID, &a.AccountID, &a.TotalScore, &a.RiskLevel,
		&findings, &alerts, &actions, &a.Degraded, &a.EvaluationMs, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	if err := json.Unmarshal(findings, &a.Findings); err != nil {
		return nil, fmt.Errorf("decode findings: %w", err)
	}
	if err := json.Unmarshal(alerts, &a.Alerts); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	if err := json.Unmarshal(actions, &a.Actions); err != nil {
		return nil, fmt.Errorf("decode actions: %w", err)
	}
	return &a, nil
}

// GetMonitoringState returns the transaction's monitoring state, NEW when
// the transaction has not been screened yet
func (s *Store) GetMonitoringState(ctx context.Context, transactionID uuid.UUID) (domain.MonitoringStatus, error) {
	const q = `
		SELECT status FROM transaction_monitoring_states
		WHERE transaction_id = $1`

	var status domain.MonitoringStatus
	err := s.pool.QueryRow(ctx, q, transactionID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoringNew, nil
	}
	if err != nil {
		return "", fmt.Errorf("get monitoring state: %w", err)
	}
	return status, nil
}

// SetMonitoringState upserts the transaction's monitoring state and writes
// the transition to the audit log
func (s *Store) SetMonitoringState(ctx context.Context, transactionID uuid.UUID, from, to domain.MonitoringStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("set monitoring state: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO transaction_monitoring_states (transaction_id, status, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (transaction_id) DO UPDATE SET status = $2, updated_at = NOW()`
	if _, err := tx.Exec(ctx, upsert, transactionID, to); err != nil {
		return fmt.Errorf("set monitoring state: %w", err)
	}

	const audit = `
		INSERT INTO monitoring_state_audit (id, transaction_id, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4, NOW())`
	if _, err := tx.Exec(ctx, audit, uuid.New(), transactionID, from, to); err != nil {
		return fmt.Errorf("audit monitoring state: %w", err)
	}

	return tx.Commit(ctx)
}

// DailyAggregates computes the reporting collaborator's daily counters for
// the given UTC day
func (s *Store) DailyAggregates(ctx context.Context, day time.Time) (*domain.DailyReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	const q = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE risk_level IN ('HIGH', 'CRITICAL')),
			COALESCE(AVG(total_score), 0)
		FROM risk_assessments
		WHERE created_at >= $1 AND created_at < $2`

	report := &domain.DailyReport{Date: start}
	if err := s.pool.QueryRow(ctx, q, start, end).Scan(
		&report.TotalTransactions, &report.HighRiskCount, &report.AverageScore,
	); err != nil {
		return nil, fmt.Errorf("daily aggregates: %w", err)
	}

	const alertQ = `
		SELECT COUNT(*) FROM alerts
		WHERE created_at >= $1 AND created_at < $2`
	if err := s.pool.QueryRow(ctx, alertQ, start, end).Scan(&report.AlertCount); err != nil {
		return nil, fmt.Errorf("daily aggregates: %w", err)
	}
	return report, nil
}

// SaveDailyReport persists the daily aggregate row
func (s *Store) SaveDailyReport(ctx context.Context, r *domain.DailyReport) error {
	const q = `
		INSERT INTO daily_risk_reports (date, total_transactions, high_risk_count, average_score, alert_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date) DO UPDATE SET
			total_transactions = $2, high_risk_count = $3, average_score = $4, alert_count = $5`

	_, err := s.pool.Exec(ctx, q,
		r.Date, r.TotalTransactions, r.HighRiskCount, r.AverageScore, r.AlertCount,
	)
	if err != nil {
		return fmt.Errorf("save daily report: %w", err)
	}
	return nil
}
