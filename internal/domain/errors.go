package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy for the scoring pipeline. Detector-level errors are
// recovered locally by the aggregator (converted to a medium-risk ERROR
// finding); only pipeline-level failures propagate to the caller.
var (
	ErrDetectorTimeout         = errors.New("detector timed out")
	ErrDetectorExecution       = errors.New("detector execution failed")
	ErrProfileStoreUnavailable = errors.New("profile store unavailable")
	ErrPatternLibraryStale     = errors.New("pattern library reload failed, serving last known good snapshot")
	ErrInvalidTransaction      = errors.New("invalid transaction")
	ErrAlertNotFound           = errors.New("alert not found")
	ErrAssessmentNotFound      = errors.New("assessment not found")
)

func invalidTransaction(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransaction, reason)
}

// ErrInvalidTransition is returned for illegal monitoring-state moves
var ErrInvalidTransition = errors.New("invalid state transition")

func invalidStateTransition(from, to MonitoringStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func invalidAlertTransition(from AlertStatus, to AlertStatus) error {
	return fmt.Errorf("%w: alert %s -> %s", ErrInvalidTransition, from, to)
}
