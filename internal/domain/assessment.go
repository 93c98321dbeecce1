package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel represents the risk severity of an assessment or alert
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// Action is the automated response chosen by the decision engine
type Action string

const (
	ActionApprove Action = "APPROVE"
	ActionLog     Action = "LOG"
	ActionMonitor Action = "MONITOR"
	ActionHold    Action = "HOLD"
	ActionBlock   Action = "BLOCK"
)

// FindingStatus is a detector's verdict for one transaction
type FindingStatus string

const (
	FindingPass    FindingStatus = "PASS"
	FindingWarning FindingStatus = "WARNING"
	FindingFail    FindingStatus = "FAIL"
	FindingError   FindingStatus = "ERROR"
)

// FindingDetail is one structured observation inside a finding
type FindingDetail struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Score       float64 `json:"score,omitempty"`
}

// RiskFinding is a single detector's partial verdict plus score contribution.
// Contributions are never negative; a finding can only add risk.
type RiskFinding struct {
	Detector string          `json:"detector"`
	Status   FindingStatus   `json:"status"`
	Score    float64         `json:"score"`
	Details  []FindingDetail `json:"details,omitempty"`
}

// AddDetail appends an observation and its score contribution
func (f *RiskFinding) AddDetail(detailType, description string, score float64) {
	if score < 0 {
		score = 0
	}
	f.Details = append(f.Details, FindingDetail{
		Type:        detailType,
		Description: description,
		Score:       score,
	})
	f.Score += score
	if f.Status == FindingPass {
		f.Status = FindingWarning
	}
}

// RiskAssessment is the aggregate, persisted verdict for one transaction
type RiskAssessment struct {
	ID            uuid.UUID `json:"id" db:"id"`
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id" db:"account_id"`

	TotalScore float64   `json:"total_score" db:"total_score"` // clamped to [0,100]
	RiskLevel  RiskLevel `json:"risk_level" db:"risk_level"`

	Findings []RiskFinding `json:"findings" db:"findings"`
	Alerts   []Alert       `json:"alerts,omitempty" db:"alerts"`
	Actions  []Action      `json:"actions" db:"actions"`

	// Degraded marks an assessment produced despite detector failures;
	// the score is a fail-safe estimate, not a fully trusted one.
	Degraded bool `json:"degraded" db:"degraded"`

	EvaluationMs int64     `json:"evaluation_ms" db:"evaluation_ms"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PrimaryAction returns the most severe action chosen for this assessment
func (a *RiskAssessment) PrimaryAction() Action {
	primary := ActionApprove
	for _, action := range a.Actions {
		if actionSeverity(action) > actionSeverity(primary) {
			primary = action
		}
	}
	return primary
}

// HasSanctionsFail reports whether the sanctions screener returned FAIL
func (a *RiskAssessment) HasSanctionsFail() bool {
	for _, f := range a.Findings {
		if f.Detector == DetectorSanctions && f.Status == FindingFail {
			return true
		}
	}
	return false
}

// RequiresSynchronousAction reports whether the caller must observe the
// decision before funds move
func (a *RiskAssessment) RequiresSynchronousAction() bool {
	action := a.PrimaryAction()
	return action == ActionHold || action == ActionBlock
}

func actionSeverity(a Action) int {
	switch a {
	case ActionBlock:
		return 4
	case ActionHold:
		return 3
	case ActionMonitor:
		return 2
	case ActionLog:
		return 1
	default:
		return 0
	}
}

// Detector names used in findings and configuration
const (
	DetectorRules      = "rule_matcher"
	DetectorStatistics = "statistical_anomaly"
	DetectorBehavior   = "behavioral_deviation"
	DetectorVelocity   = "velocity_burst"
	DetectorNetwork    = "network_analysis"
	DetectorSanctions  = "sanctions_geography"
	DetectorPredictive = "predictive_scorer"
)
