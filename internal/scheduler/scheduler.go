package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// Reloader refreshes a reference snapshot; both the pattern library and
// the watchlist index satisfy it
type Reloader interface {
	Reload(ctx context.Context) error
}

// ProfileEvictor drops idle profile cache entries
type ProfileEvictor interface {
	EvictIdle(ttl time.Duration) int
}

// AlertMaintenanceStore lists and updates alerts for timeout close and
// archival
type AlertMaintenanceStore interface {
	OpenAlertsOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Alert, error)
	ClosedAlertsBefore(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Alert, error)
	UpdateAlert(ctx context.Context, a *domain.Alert) error
}

// ReportStore computes and persists the daily aggregates
type ReportStore interface {
	DailyAggregates(ctx context.Context, day time.Time) (*domain.DailyReport, error)
	SaveDailyReport(ctx context.Context, r *domain.DailyReport) error
}

// ReportPublisher forwards the daily report to the reporting collaborator
type ReportPublisher interface {
	PublishDailyReport(ctx context.Context, r *domain.DailyReport) error
}

const maintenanceBatchSize = 500

// Scheduler owns the periodic background jobs. Every job is an ordinary
// method on an injectable clock so tests drive them directly; Start only
// adds the tickers. Jobs never hold a lock the transaction path needs.
type Scheduler struct {
	patterns  Reloader
	watchlist Reloader
	profiles  ProfileEvictor
	alerts    AlertMaintenanceStore
	reports   ReportStore
	publisher ReportPublisher

	cfg       *config.SchedulerConfig
	alertsCfg *config.AlertsConfig
	log       *logger.Logger
	now       func() time.Time
}

// New creates the scheduler
func New(
	patterns Reloader,
	watchlist Reloader,
	profiles ProfileEvictor,
	alerts AlertMaintenanceStore,
	reports ReportStore,
	publisher ReportPublisher,
	cfg *config.SchedulerConfig,
	alertsCfg *config.AlertsConfig,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		patterns:  patterns,
		watchlist: watchlist,
		profiles:  profiles,
		alerts:    alerts,
		reports:   reports,
		publisher: publisher,
		cfg:       cfg,
		alertsCfg: alertsCfg,
		log:       log.Named("scheduler"),
		now:       time.Now,
	}
}

// WithClock overrides the scheduler clock for tests
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start runs all periodic jobs until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	go s.every(ctx, s.cfg.PatternReloadInterval, "pattern_reload", s.ReloadPatterns)
	go s.every(ctx, s.cfg.WatchlistReloadInterval, "watchlist_reload", s.ReloadWatchlists)
	go s.every(ctx, s.cfg.ProfileEvictionInterval, "profile_eviction", s.EvictProfiles)
	go s.every(ctx, s.cfg.AlertArchivalInterval, "alert_maintenance", s.MaintainAlerts)
	go s.runDaily(ctx)
}

func (s *Scheduler) every(ctx context.Context, interval time.Duration, name string, job func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := job(ctx); err != nil {
				s.log.Warn("scheduled job failed",
					logger.StringField("job", name), logger.ErrorField(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// runDaily fires the daily report once per day at the configured UTC hour
func (s *Scheduler) runDaily(ctx context.Context) {
	for {
		next := s.nextReportTime()
		select {
		case <-time.After(next.Sub(s.now())):
			// Report covers the day that just ended
			day := next.Add(-24 * time.Hour)
			if err := s.WriteDailyReport(ctx, day); err != nil {
				s.log.Warn("daily report failed", logger.ErrorField(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) nextReportTime() time.Time {
	now := s.now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.cfg.DailyReportHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// ReloadPatterns refreshes the pattern library snapshot
func (s *Scheduler) ReloadPatterns(ctx context.Context) error {
	return s.patterns.Reload(ctx)
}

// ReloadWatchlists refreshes the watchlist index snapshot
func (s *Scheduler) ReloadWatchlists(ctx context.Context) error {
	return s.watchlist.Reload(ctx)
}

// EvictProfiles drops profiles idle past the TTL
func (s *Scheduler) EvictProfiles(_ context.Context) error {
	evicted := s.profiles.EvictIdle(s.cfg.ProfileIdleTTL)
	if evicted > 0 {
		s.log.Info("profile eviction completed", logger.IntField("evicted", evicted))
	}
	return nil
}

// MaintainAlerts closes open LOW/MEDIUM alerts past the review timeout and
// archives closed alerts past the retention window
func (s *Scheduler) MaintainAlerts(ctx context.Context) error {
	now := s.now()

	stale, err := s.alerts.OpenAlertsOlderThan(ctx, now.Add(-s.alertsCfg.ReviewTimeout), maintenanceBatchSize)
	if err != nil {
		return fmt.Errorf("list stale alerts: %w", err)
	}
	closed := 0
	for _, a := range stale {
		if err := a.Close("auto-closed after review timeout", now); err != nil {
			continue
		}
		if err := s.alerts.UpdateAlert(ctx, a); err != nil {
			return fmt.Errorf("auto-close alert %s: %w", a.ID, err)
		}
		closed++
	}

	archivable, err := s.alerts.ClosedAlertsBefore(ctx, now.Add(-s.alertsCfg.RetentionWindow), maintenanceBatchSize)
	if err != nil {
		return fmt.Errorf("list archivable alerts: %w", err)
	}
	archived := 0
	for _, a := range archivable {
		if err := a.Archive(); err != nil {
			continue
		}
		if err := s.alerts.UpdateAlert(ctx, a); err != nil {
			return fmt.Errorf("archive alert %s: %w", a.ID, err)
		}
		archived++
	}

	if closed > 0 || archived > 0 {
		s.log.Info("alert maintenance completed",
			logger.IntField("closed", closed), logger.IntField("archived", archived))
	}
	return nil
}

// WriteDailyReport computes, persists and publishes the aggregates for one
// UTC day
func (s *Scheduler) WriteDailyReport(ctx context.Context, day time.Time) error {
	report, err := s.reports.DailyAggregates(ctx, day)
	if err != nil {
		return fmt.Errorf("compute daily report: %w", err)
	}
	if err := s.reports.SaveDailyReport(ctx, report); err != nil {
		return fmt.Errorf("persist daily report: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishDailyReport(ctx, report); err != nil {
			s.log.Warn("daily report publish failed", logger.ErrorField(err))
		}
	}
	s.log.Info("daily report written",
		logger.StringField("date", report.Date.Format("2006-01-02")),
		logger.IntField("transactions", report.TotalTransactions),
		logger.IntField("high_risk", report.HighRiskCount),
		logger.Float64Field("average_score", report.AverageScore),
		logger.IntField("alerts", report.AlertCount))
	return nil
}
