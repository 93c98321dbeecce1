package domain

import "time"

// DailyReport is the aggregate the scheduler writes once per day for the
// reporting collaborator
type DailyReport struct {
	Date              time.Time `json:"date" db:"date"`
	TotalTransactions int       `json:"total_transactions" db:"total_transactions"`
	HighRiskCount     int       `json:"high_risk_count" db:"high_risk_count"`
	AverageScore      float64   `json:"average_score" db:"average_score"`
	AlertCount        int       `json:"alert_count" db:"alert_count"`
}
