package domain

// MonitoringStatus is the screening state machine the engine overlays on
// the externally-owned transaction:
//
//	NEW -> SCREENED -> {APPROVED, MONITORED, HELD, BLOCKED}
//	HELD -> {APPROVED, BLOCKED} after manual review
//
// APPROVED and BLOCKED are terminal until reversed by an external
// compliance action.
type MonitoringStatus string

const (
	MonitoringNew       MonitoringStatus = "NEW"
	MonitoringScreened  MonitoringStatus = "SCREENED"
	MonitoringApproved  MonitoringStatus = "APPROVED"
	MonitoringMonitored MonitoringStatus = "MONITORED"
	MonitoringHeld      MonitoringStatus = "HELD"
	MonitoringBlocked   MonitoringStatus = "BLOCKED"
)

var monitoringTransitions = map[MonitoringStatus][]MonitoringStatus{
	MonitoringNew:       {MonitoringScreened},
	MonitoringScreened:  {MonitoringApproved, MonitoringMonitored, MonitoringHeld, MonitoringBlocked},
	MonitoringMonitored: {MonitoringApproved, MonitoringHeld, MonitoringBlocked},
	MonitoringHeld:      {MonitoringApproved, MonitoringBlocked},
}

// CanTransition reports whether moving from s to next is a legal transition
func (s MonitoringStatus) CanTransition(next MonitoringStatus) bool {
	for _, allowed := range monitoringTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition returns the next status or an error for illegal moves
func (s MonitoringStatus) Transition(next MonitoringStatus) (MonitoringStatus, error) {
	if !s.CanTransition(next) {
		return s, invalidStateTransition(s, next)
	}
	return next, nil
}

// IsTerminal reports whether the status accepts no further engine-driven
// transitions
func (s MonitoringStatus) IsTerminal() bool {
	return s == MonitoringApproved || s == MonitoringBlocked
}

// StatusForAction maps a decision-engine action to the resulting
// monitoring status
func StatusForAction(a Action) MonitoringStatus {
	switch a {
	case ActionBlock:
		return MonitoringBlocked
	case ActionHold:
		return MonitoringHeld
	case ActionMonitor:
		return MonitoringMonitored
	default:
		return MonitoringApproved
	}
}
