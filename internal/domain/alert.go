package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertStatus represents the lifecycle state of an alert
type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "OPEN"
	AlertStatusClosed   AlertStatus = "CLOSED"
	AlertStatusArchived AlertStatus = "ARCHIVED"
)

// Alert is raised by the decision engine when an assessment crosses a
// threshold. Each alert references exactly one assessment.
type Alert struct {
	ID            uuid.UUID `json:"id" db:"id"`
	AssessmentID  uuid.UUID `json:"assessment_id" db:"assessment_id"`
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"`
	AccountID     uuid.UUID `json:"account_id" db:"account_id"`

	Level             RiskLevel   `json:"level" db:"level"`
	Status            AlertStatus `json:"status" db:"status"`
	Message           string      `json:"message" db:"message"`
	RecommendedAction Action      `json:"recommended_action" db:"recommended_action"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ClosedAt   *time.Time `json:"closed_at,omitempty" db:"closed_at"`
	Resolution string     `json:"resolution,omitempty" db:"resolution"`
}

// Close transitions an alert from OPEN to CLOSED
func (a *Alert) Close(resolution string, at time.Time) error {
	if a.Status != AlertStatusOpen {
		return invalidAlertTransition(a.Status, AlertStatusClosed)
	}
	a.Status = AlertStatusClosed
	a.Resolution = resolution
	a.ClosedAt = &at
	return nil
}

// Archive transitions an alert from CLOSED to ARCHIVED
func (a *Alert) Archive() error {
	if a.Status != AlertStatusClosed {
		return invalidAlertTransition(a.Status, AlertStatusArchived)
	}
	a.Status = AlertStatusArchived
	return nil
}

// IsOpen returns true while the alert awaits review or timeout
func (a *Alert) IsOpen() bool {
	return a.Status == AlertStatusOpen
}

// RequiresNotification returns true for levels routed to the
// notification collaborator
func (a *Alert) RequiresNotification() bool {
	return a.Level == RiskLevelHigh || a.Level == RiskLevelCritical
}
