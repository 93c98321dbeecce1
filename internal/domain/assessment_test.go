package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRiskFindingAddDetail(t *testing.T) {
	f := RiskFinding{Detector: DetectorStatistics, Status: FindingPass}

	f.AddDetail("amount_anomaly", "way off baseline", 25)
	assert.Equal(t, 25.0, f.Score)
	assert.Equal(t, FindingWarning, f.Status)
	assert.Len(t, f.Details, 1)

	// Negative contributions clamp to zero: findings never reduce risk
	f.AddDetail("bogus", "negative input", -10)
	assert.Equal(t, 25.0, f.Score)
	assert.Equal(t, 0.0, f.Details[1].Score)
}

func TestRiskFindingAddDetailKeepsFail(t *testing.T) {
	f := RiskFinding{Detector: DetectorSanctions, Status: FindingFail}
	f.AddDetail("sanctioned_account", "exact match", 50)
	assert.Equal(t, FindingFail, f.Status)
}

func TestPrimaryAction(t *testing.T) {
	a := RiskAssessment{Actions: []Action{ActionLog, ActionBlock, ActionMonitor}}
	assert.Equal(t, ActionBlock, a.PrimaryAction())

	empty := RiskAssessment{}
	assert.Equal(t, ActionApprove, empty.PrimaryAction())
}

func TestHasSanctionsFail(t *testing.T) {
	a := RiskAssessment{Findings: []RiskFinding{
		{Detector: DetectorStatistics, Status: FindingWarning},
		{Detector: DetectorSanctions, Status: FindingFail},
	}}
	assert.True(t, a.HasSanctionsFail())

	b := RiskAssessment{Findings: []RiskFinding{
		{Detector: DetectorSanctions, Status: FindingPass},
	}}
	assert.False(t, b.HasSanctionsFail())
}

func TestRequiresSynchronousAction(t *testing.T) {
	assert.True(t, (&RiskAssessment{Actions: []Action{ActionHold}}).RequiresSynchronousAction())
	assert.True(t, (&RiskAssessment{Actions: []Action{ActionBlock}}).RequiresSynchronousAction())
	assert.False(t, (&RiskAssessment{Actions: []Action{ActionMonitor}}).RequiresSynchronousAction())
	assert.False(t, (&RiskAssessment{}).RequiresSynchronousAction())
}
