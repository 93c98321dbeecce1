package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitoringTransitions(t *testing.T) {
	tests := []struct {
		from MonitoringStatus
		to   MonitoringStatus
		ok   bool
	}{
		{MonitoringNew, MonitoringScreened, true},
		{MonitoringNew, MonitoringBlocked, false},
		{MonitoringScreened, MonitoringApproved, true},
		{MonitoringScreened, MonitoringMonitored, true},
		{MonitoringScreened, MonitoringHeld, true},
		{MonitoringScreened, MonitoringBlocked, true},
		{MonitoringHeld, MonitoringApproved, true},
		{MonitoringHeld, MonitoringBlocked, true},
		{MonitoringHeld, MonitoringMonitored, false},
		{MonitoringApproved, MonitoringBlocked, false},
		{MonitoringBlocked, MonitoringApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			next, err := tt.from.Transition(tt.to)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.to, next)
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, next)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, MonitoringApproved.IsTerminal())
	assert.True(t, MonitoringBlocked.IsTerminal())
	assert.False(t, MonitoringHeld.IsTerminal())
	assert.False(t, MonitoringScreened.IsTerminal())
}

func TestStatusForAction(t *testing.T) {
	assert.Equal(t, MonitoringBlocked, StatusForAction(ActionBlock))
	assert.Equal(t, MonitoringHeld, StatusForAction(ActionHold))
	assert.Equal(t, MonitoringMonitored, StatusForAction(ActionMonitor))
	assert.Equal(t, MonitoringApproved, StatusForAction(ActionLog))
	assert.Equal(t, MonitoringApproved, StatusForAction(ActionApprove))
}
