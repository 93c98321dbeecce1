package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
)

// Policy turns a set of findings into the aggregate assessment: clamped
// total score, risk level, chosen actions and alerts.
type Policy struct {
	cfg *config.EngineConfig
}

// NewPolicy creates the decision policy with configured thresholds
func NewPolicy(cfg *config.EngineConfig) *Policy {
	return &Policy{cfg: cfg}
}

// Decide aggregates findings for one transaction. Sanctions FAIL findings
// force at least a HOLD regardless of the total; every other signal is
// purely additive.
func (p *Policy) Decide(tx *domain.Transaction, findings []domain.RiskFinding, degraded bool, evaluationMs int64) *domain.RiskAssessment {
	total := 0.0
	for _, f := range findings {
		total += f.Score
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}

	a := &domain.RiskAssessment{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		TotalScore:    total,
		Findings:      findings,
		Degraded:      degraded,
		EvaluationMs:  evaluationMs,
		CreatedAt:     time.Now().UTC(),
	}

	level, action := p.classify(total)
	sanctionsFail := a.HasSanctionsFail()

	// Sanctions hits are a hard floor, never smoothed by aggregation
	if sanctionsFail {
		if severityBelow(action, domain.ActionHold) {
			action = domain.ActionHold
		}
		if level == "" || level == domain.RiskLevelLow || level == domain.RiskLevelMedium {
			level = domain.RiskLevelHigh
		}
	}

	a.RiskLevel = level
	if action != domain.ActionApprove {
		a.Actions = append(a.Actions, action)
	}

	if level != "" && (action != domain.ActionApprove || sanctionsFail) {
		a.Alerts = append(a.Alerts, domain.Alert{
			ID:                uuid.New(),
			AssessmentID:      a.ID,
			TransactionID:     tx.ID,
			AccountID:         tx.AccountID,
			Level:             level,
			Status:            domain.AlertStatusOpen,
			Message:           alertMessage(tx, total, findings),
			RecommendedAction: action,
			CreatedAt:         a.CreatedAt,
		})
	}

	return a
}

// classify maps a total score onto the threshold table, highest first
func (p *Policy) classify(total float64) (domain.RiskLevel, domain.Action) {
	switch {
	case total >= p.cfg.BlockThreshold:
		return domain.RiskLevelCritical, domain.ActionBlock
	case total >= p.cfg.HoldThreshold:
		return domain.RiskLevelHigh, domain.ActionHold
	case total >= p.cfg.MonitorThreshold:
		return domain.RiskLevelMedium, domain.ActionMonitor
	case total >= p.cfg.LogThreshold:
		return domain.RiskLevelLow, domain.ActionLog
	default:
		return "", domain.ActionApprove
	}
}

func severityBelow(a, floor domain.Action) bool {
	rank := map[domain.Action]int{
		domain.ActionApprove: 0,
		domain.ActionLog:     1,
		domain.ActionMonitor: 2,
		domain.ActionHold:    3,
		domain.ActionBlock:   4,
	}
	return rank[a] < rank[floor]
}

func alertMessage(tx *domain.Transaction, total float64, findings []domain.RiskFinding) string {
	triggered := 0
	for _, f := range findings {
		if f.Status != domain.FindingPass {
			triggered++
		}
	}
	return fmt.Sprintf("transaction %s scored %.0f across %d triggered detectors", tx.ID, total, triggered)
}
