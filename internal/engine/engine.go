package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/detector"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/patterns"
	"github.com/monay/risk-engine/internal/pkg/logger"
	"github.com/monay/risk-engine/internal/watchlist"
)

// ProfileSource provides point-in-time profile copies and post-decision
// profile updates
type ProfileSource interface {
	Get(ctx context.Context, accountID uuid.UUID) (*domain.UserRiskProfile, error)
	Record(ctx context.Context, tx *domain.Transaction, totalScore float64) error
}

// PatternSource yields the active pattern snapshot
type PatternSource interface {
	Snapshot() *patterns.Snapshot
}

// WatchlistSource yields the active watchlist snapshot
type WatchlistSource interface {
	Snapshot() *watchlist.Snapshot
}

// VelocityRecorder folds a transaction into the hourly velocity buckets
type VelocityRecorder interface {
	Record(ctx context.Context, accountID uuid.UUID, amount float64, ts time.Time) error
}

// Engine runs the full evaluation pipeline: snapshot capture, parallel
// detector fan-out, aggregation, decision and action execution.
type Engine struct {
	detectors []detector.Detector
	profiles  ProfileSource
	library   PatternSource
	index     WatchlistSource
	velocity  VelocityRecorder
	policy    *Policy
	executor  *Executor

	cfg    *config.EngineConfig
	log    *logger.Logger
	tracer trace.Tracer

	// Metrics
	evalCount    int64
	avgLatencyMs float64
	latencyMu    sync.RWMutex
}

// New creates the evaluation engine
func New(
	detectors []detector.Detector,
	profiles ProfileSource,
	library PatternSource,
	index WatchlistSource,
	velocity VelocityRecorder,
	policy *Policy,
	executor *Executor,
	cfg *config.EngineConfig,
	log *logger.Logger,
) *Engine {
	return &Engine{
		detectors: detectors,
		profiles:  profiles,
		library:   library,
		index:     index,
		velocity:  velocity,
		policy:    policy,
		executor:  executor,
		cfg:       cfg,
		log:       log.Named("risk_engine"),
		tracer:    otel.Tracer("risk-engine"),
	}
}

// Evaluate runs the synchronous authorization-path evaluation. Detector
// work continues on a detached context so an upstream cancel still leaves
// a persisted assessment behind for audit.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.Transaction) (*domain.RiskAssessment, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	e.log.EvaluationStarted(tx.ID.String(), tx.AccountID.String())

	ctx = context.WithoutCancel(ctx)
	ctx, span := e.tracer.Start(ctx, "engine.Evaluate",
		trace.WithAttributes(
			attribute.String("transaction.id", tx.ID.String()),
			attribute.String("account.id", tx.AccountID.String()),
		))
	defer span.End()

	in := e.captureInput(ctx, tx)
	findings, degraded := e.runDetectors(ctx, in)

	durationMs := time.Since(start).Milliseconds()
	assessment := e.policy.Decide(tx, findings, degraded, durationMs)

	if err := e.executor.Execute(ctx, tx, assessment); err != nil {
		return nil, fmt.Errorf("execute decision: %w", err)
	}

	// Post-decision bookkeeping off the latency path
	go e.recordObservations(ctx, tx, assessment.TotalScore)

	e.recordLatency(durationMs)
	if durationMs > e.cfg.MaxEvalLatency.Milliseconds() {
		e.log.LatencyWarning("full_evaluation", durationMs, e.cfg.MaxEvalLatency.Milliseconds())
	}
	e.log.EvaluationCompleted(tx.ID.String(), string(assessment.PrimaryAction()),
		assessment.TotalScore, assessment.Degraded, durationMs)

	span.SetAttributes(
		attribute.Float64("risk.total_score", assessment.TotalScore),
		attribute.Bool("risk.degraded", assessment.Degraded),
		attribute.String("risk.action", string(assessment.PrimaryAction())),
	)
	return assessment, nil
}

// EvaluateAsync runs the same pipeline detached from the caller
func (e *Engine) EvaluateAsync(ctx context.Context, tx *domain.Transaction) {
	go func() {
		if _, err := e.Evaluate(context.WithoutCancel(ctx), tx); err != nil {
			e.log.Error("async evaluation failed",
				logger.StringField("transaction_id", tx.ID.String()),
				logger.ErrorField(err))
		}
	}()
}

// captureInput pins the snapshots every detector will see for this
// evaluation. A concurrent reload swaps the active snapshot but never the
// captured one.
func (e *Engine) captureInput(ctx context.Context, tx *domain.Transaction) *detector.Input {
	in := &detector.Input{
		Transaction: tx,
		Patterns:    e.library.Snapshot(),
		Watchlists:  e.index.Snapshot(),
	}

	p, err := e.profiles.Get(ctx, tx.AccountID)
	if err != nil {
		// Behavioral checks abstain without a profile; the rest still run
		e.log.Warn("profile unavailable", logger.ErrorField(err))
	}
	in.Profile = p
	return in
}

// runDetectors fans out all detectors in parallel with a per-detector
// deadline. Failures and timeouts become ERROR findings with a fixed
// medium-risk contribution: fail-safe, not fail-open.
func (e *Engine) runDetectors(ctx context.Context, in *detector.Input) ([]domain.RiskFinding, bool) {
	findings := make([]domain.RiskFinding, len(e.detectors))
	degraded := false
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range e.detectors {
		i, d := i, d
		g.Go(func() error {
			start := time.Now()
			finding, err := e.runOne(gctx, d, in)
			durationMs := time.Since(start).Milliseconds()

			if err != nil {
				e.log.DetectorFailed(in.Transaction.ID.String(), d.Name(), err)
				finding = &domain.RiskFinding{
					Detector: d.Name(),
					Status:   domain.FindingError,
					Score:    e.cfg.ErrorContribution,
					Details: []domain.FindingDetail{{
						Type:        "detector_error",
						Description: err.Error(),
						Score:       e.cfg.ErrorContribution,
					}},
				}
				mu.Lock()
				degraded = true
				mu.Unlock()
			} else {
				e.log.DetectorCompleted(in.Transaction.ID.String(), d.Name(),
					string(finding.Status), finding.Score, durationMs)
			}

			findings[i] = *finding
			return nil
		})
	}
	g.Wait()

	return findings, degraded
}

// runOne executes a single detector under its deadline, converting a
// detector that ignores cancellation into a timeout error anyway
func (e *Engine) runOne(ctx context.Context, d detector.Detector, in *detector.Input) (*domain.RiskFinding, error) {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
	defer cancel()

	type result struct {
		finding *domain.RiskFinding
		err     error
	}
	done := make(chan result, 1)
	go func() {
		f, err := d.Detect(tctx, in)
		done <- result{f, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s", domain.ErrDetectorTimeout, d.Name())
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrDetectorExecution, d.Name(), r.err)
		}
		return r.finding, nil
	case <-tctx.Done():
		return nil, fmt.Errorf("%w: %s", domain.ErrDetectorTimeout, d.Name())
	}
}

// recordObservations updates the velocity buckets and the behavioral
// profile after the decision is out the door
func (e *Engine) recordObservations(ctx context.Context, tx *domain.Transaction, totalScore float64) {
	if err := e.velocity.Record(ctx, tx.AccountID, tx.Amount, tx.Timestamp); err != nil {
		e.log.Warn("velocity record failed", logger.ErrorField(err))
	}
	if err := e.profiles.Record(ctx, tx, totalScore); err != nil {
		e.log.Warn("profile record failed", logger.ErrorField(err))
	}
}

func (e *Engine) recordLatency(durationMs int64) {
	e.latencyMu.Lock()
	defer e.latencyMu.Unlock()

	e.evalCount++
	// Exponential moving average
	e.avgLatencyMs = e.avgLatencyMs*0.9 + float64(durationMs)*0.1
}

// AverageLatency returns the exponentially averaged evaluation latency
func (e *Engine) AverageLatency() float64 {
	e.latencyMu.RLock()
	defer e.latencyMu.RUnlock()
	return e.avgLatencyMs
}

// EvaluationCount returns total evaluations performed
func (e *Engine) EvaluationCount() int64 {
	e.latencyMu.RLock()
	defer e.latencyMu.RUnlock()
	return e.evalCount
}
