package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// AssessmentStore persists assessments for audit
type AssessmentStore interface {
	SaveAssessment(ctx context.Context, a *domain.RiskAssessment) error
}

// AlertStore persists alerts and answers the dedupe query
type AlertStore interface {
	SaveAlert(ctx context.Context, a *domain.Alert) error
	HasOpenAlert(ctx context.Context, transactionID uuid.UUID, level domain.RiskLevel) (bool, error)
}

// StateStore reads and writes the transaction monitoring state
type StateStore interface {
	GetMonitoringState(ctx context.Context, transactionID uuid.UUID) (domain.MonitoringStatus, error)
	SetMonitoringState(ctx context.Context, transactionID uuid.UUID, from, to domain.MonitoringStatus) error
}

// WalletGateway is the wallet/ledger collaborator invoked on holds and blocks
type WalletGateway interface {
	Hold(ctx context.Context, transactionID uuid.UUID, reason string) error
	Block(ctx context.Context, transactionID uuid.UUID, reason string) error
}

// Notifier delivers HIGH and CRITICAL alerts to the notification collaborator
type Notifier interface {
	Notify(ctx context.Context, alert *domain.Alert) error
}

// ReviewQueue creates manual review tasks for held transactions
type ReviewQueue interface {
	CreateReviewTask(ctx context.Context, transactionID uuid.UUID, priority domain.RiskLevel, reason string) error
}

// Publisher emits alert, action and audit events to the event bus
type Publisher interface {
	PublishAlert(ctx context.Context, alert *domain.Alert) error
	PublishAction(ctx context.Context, transactionID uuid.UUID, action domain.Action, totalScore float64) error
	PublishAudit(ctx context.Context, a *domain.RiskAssessment) error
}

// Executor applies the decision: persists the assessment, drives the
// monitoring state machine, raises alerts and fires collaborator side
// effects. BLOCK and HOLD side effects complete before Execute returns;
// MONITOR and LOG effects are fire-and-forget.
type Executor struct {
	assessments AssessmentStore
	alerts      AlertStore
	states      StateStore
	wallet      WalletGateway
	notifier    Notifier
	reviews     ReviewQueue
	publisher   Publisher
	log         *logger.Logger
}

// NewExecutor creates the action executor
func NewExecutor(
	assessments AssessmentStore,
	alerts AlertStore,
	states StateStore,
	wallet WalletGateway,
	notifier Notifier,
	reviews ReviewQueue,
	publisher Publisher,
	log *logger.Logger,
) *Executor {
	return &Executor{
		assessments: assessments,
		alerts:      alerts,
		states:      states,
		wallet:      wallet,
		notifier:    notifier,
		reviews:     reviews,
		publisher:   publisher,
		log:         log.Named("action_executor"),
	}
}

// Execute applies one assessment. Persistence failure is a hard error: an
// unpersisted assessment has no audit trail, which compliance cannot accept.
func (e *Executor) Execute(ctx context.Context, tx *domain.Transaction, a *domain.RiskAssessment) error {
	if err := e.assessments.SaveAssessment(ctx, a); err != nil {
		return fmt.Errorf("persist assessment: %w", err)
	}

	if err := e.transition(ctx, tx.ID, a.PrimaryAction()); err != nil {
		return err
	}

	if err := e.raiseAlerts(ctx, a); err != nil {
		return err
	}

	if err := e.applySideEffects(ctx, tx, a); err != nil {
		return err
	}

	if e.publisher != nil {
		if err := e.publisher.PublishAudit(ctx, a); err != nil {
			e.log.Warn("audit publish failed", logger.ErrorField(err))
		}
	}
	return nil
}

// transition walks NEW -> SCREENED -> action outcome, skipping moves the
// state machine already passed
func (e *Executor) transition(ctx context.Context, txID uuid.UUID, action domain.Action) error {
	current, err := e.states.GetMonitoringState(ctx, txID)
	if err != nil {
		return fmt.Errorf("read monitoring state: %w", err)
	}

	if current == domain.MonitoringNew {
		if err := e.states.SetMonitoringState(ctx, txID, current, domain.MonitoringScreened); err != nil {
			return err
		}
		e.log.StateTransition(txID.String(), string(current), string(domain.MonitoringScreened))
		current = domain.MonitoringScreened
	}

	target := domain.StatusForAction(action)
	if current == target {
		return nil
	}
	next, err := current.Transition(target)
	if err != nil {
		return err
	}
	if err := e.states.SetMonitoringState(ctx, txID, current, next); err != nil {
		return err
	}
	e.log.StateTransition(txID.String(), string(current), string(next))
	return nil
}

// raiseAlerts persists each alert, suppressing a second open alert of the
// same level for the same transaction
func (e *Executor) raiseAlerts(ctx context.Context, a *domain.RiskAssessment) error {
	kept := a.Alerts[:0]
	for i := range a.Alerts {
		alert := &a.Alerts[i]
		open, err := e.alerts.HasOpenAlert(ctx, alert.TransactionID, alert.Level)
		if err != nil {
			return fmt.Errorf("alert dedupe: %w", err)
		}
		if open {
			continue
		}
		if err := e.alerts.SaveAlert(ctx, alert); err != nil {
			return fmt.Errorf("persist alert: %w", err)
		}
		e.log.AlertCreated(alert.ID.String(), alert.TransactionID.String(), string(alert.Level), a.TotalScore)
		kept = append(kept, *alert)

		if e.publisher != nil {
			if err := e.publisher.PublishAlert(ctx, alert); err != nil {
				e.log.Warn("alert publish failed", logger.ErrorField(err))
			}
		}
	}
	a.Alerts = kept
	return nil
}

// applySideEffects fires the collaborator calls for the chosen action
func (e *Executor) applySideEffects(ctx context.Context, tx *domain.Transaction, a *domain.RiskAssessment) error {
	action := a.PrimaryAction()
	reason := fmt.Sprintf("risk score %.0f (%s)", a.TotalScore, a.RiskLevel)

	switch action {
	case domain.ActionBlock:
		if err := e.wallet.Block(ctx, tx.ID, reason); err != nil {
			return fmt.Errorf("wallet block: %w", err)
		}
	case domain.ActionHold:
		if err := e.wallet.Hold(ctx, tx.ID, reason); err != nil {
			return fmt.Errorf("wallet hold: %w", err)
		}
		if err := e.reviews.CreateReviewTask(ctx, tx.ID, a.RiskLevel, reason); err != nil {
			return fmt.Errorf("review task: %w", err)
		}
	}

	for i := range a.Alerts {
		alert := a.Alerts[i]
		if !alert.RequiresNotification() {
			continue
		}
		if a.RequiresSynchronousAction() {
			if err := e.notifier.Notify(ctx, &alert); err != nil {
				e.log.Warn("alert notification failed", logger.ErrorField(err))
			}
			continue
		}
		go func() {
			if err := e.notifier.Notify(context.WithoutCancel(ctx), &alert); err != nil {
				e.log.Warn("alert notification failed", logger.ErrorField(err))
			}
		}()
	}

	if e.publisher != nil && action != domain.ActionApprove {
		if err := e.publisher.PublishAction(ctx, tx.ID, action, a.TotalScore); err != nil {
			e.log.Warn("action publish failed", logger.ErrorField(err))
		}
	}
	return nil
}
