package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

type stubReloader struct {
	calls int
	err   error
}

func (s *stubReloader) Reload(context.Context) error {
	s.calls++
	return s.err
}

type stubEvictor struct {
	ttl     time.Duration
	evicted int
}

func (s *stubEvictor) EvictIdle(ttl time.Duration) int {
	s.ttl = ttl
	return s.evicted
}

type stubAlertStore struct {
	open    []*domain.Alert
	closed  []*domain.Alert
	updated []*domain.Alert
	listErr error
}

func (s *stubAlertStore) OpenAlertsOlderThan(_ context.Context, _ time.Time, _ int) ([]*domain.Alert, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.open, nil
}

func (s *stubAlertStore) ClosedAlertsBefore(_ context.Context, _ time.Time, _ int) ([]*domain.Alert, error) {
	return s.closed, nil
}

func (s *stubAlertStore) UpdateAlert(_ context.Context, a *domain.Alert) error {
	s.updated = append(s.updated, a)
	return nil
}

type stubReportStore struct {
	report *domain.DailyReport
	saved  *domain.DailyReport
}

func (s *stubReportStore) DailyAggregates(context.Context, time.Time) (*domain.DailyReport, error) {
	return s.report, nil
}

func (s *stubReportStore) SaveDailyReport(_ context.Context, r *domain.DailyReport) error {
	s.saved = r
	return nil
}

type stubReportPublisher struct {
	published *domain.DailyReport
}

func (s *stubReportPublisher) PublishDailyReport(_ context.Context, r *domain.DailyReport) error {
	s.published = r
	return nil
}

func testSchedulerConfig() (*config.SchedulerConfig, *config.AlertsConfig) {
	return &config.SchedulerConfig{
			PatternReloadInterval:   time.Hour,
			WatchlistReloadInterval: 24 * time.Hour,
			ProfileEvictionInterval: 30 * time.Minute,
			ProfileIdleTTL:          time.Hour,
			AlertArchivalInterval:   6 * time.Hour,
			DailyReportHourUTC:      0,
		}, &config.AlertsConfig{
			ReviewTimeout:   72 * time.Hour,
			RetentionWindow: 30 * 24 * time.Hour,
		}
}

func newTestScheduler(alerts *stubAlertStore, reports *stubReportStore, pub *stubReportPublisher, now time.Time) (*Scheduler, *stubReloader, *stubReloader, *stubEvictor) {
	patterns := &stubReloader{}
	watchlists := &stubReloader{}
	evictor := &stubEvictor{}
	cfg, alertsCfg := testSchedulerConfig()
	s := New(patterns, watchlists, evictor, alerts, reports, pub, cfg, alertsCfg, logger.Nop()).
		WithClock(func() time.Time { return now })
	return s, patterns, watchlists, evictor
}

func TestReloadJobsDelegate(t *testing.T) {
	s, patterns, watchlists, _ := newTestScheduler(&stubAlertStore{}, &stubReportStore{}, nil, time.Now())

	require.NoError(t, s.ReloadPatterns(context.Background()))
	require.NoError(t, s.ReloadWatchlists(context.Background()))
	assert.Equal(t, 1, patterns.calls)
	assert.Equal(t, 1, watchlists.calls)
}

func TestEvictProfilesUsesConfiguredTTL(t *testing.T) {
	s, _, _, evictor := newTestScheduler(&stubAlertStore{}, &stubReportStore{}, nil, time.Now())
	evictor.evicted = 3

	require.NoError(t, s.EvictProfiles(context.Background()))
	assert.Equal(t, time.Hour, evictor.ttl)
}

func TestMaintainAlertsClosesStaleOpenAlerts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	stale := &domain.Alert{
		ID:        uuid.New(),
		Level:     domain.RiskLevelLow,
		Status:    domain.AlertStatusOpen,
		CreatedAt: now.Add(-100 * time.Hour),
	}
	alerts := &stubAlertStore{open: []*domain.Alert{stale}}
	s, _, _, _ := newTestScheduler(alerts, &stubReportStore{}, nil, now)

	require.NoError(t, s.MaintainAlerts(context.Background()))

	require.Len(t, alerts.updated, 1)
	assert.Equal(t, domain.AlertStatusClosed, stale.Status)
	assert.Equal(t, "auto-closed after review timeout", stale.Resolution)
	require.NotNil(t, stale.ClosedAt)
	assert.Equal(t, now, *stale.ClosedAt)
}

func TestMaintainAlertsArchivesExpiredClosedAlerts(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	old := &domain.Alert{
		ID:        uuid.New(),
		Level:     domain.RiskLevelMedium,
		Status:    domain.AlertStatusClosed,
		CreatedAt: now.Add(-40 * 24 * time.Hour),
	}
	alerts := &stubAlertStore{closed: []*domain.Alert{old}}
	s, _, _, _ := newTestScheduler(alerts, &stubReportStore{}, nil, now)

	require.NoError(t, s.MaintainAlerts(context.Background()))

	require.Len(t, alerts.updated, 1)
	assert.Equal(t, domain.AlertStatusArchived, old.Status)
}

func TestMaintainAlertsSkipsUntransitionable(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	// Already archived: Close fails, the alert is skipped without an update
	archived := &domain.Alert{
		ID:     uuid.New(),
		Level:  domain.RiskLevelLow,
		Status: domain.AlertStatusArchived,
	}
	alerts := &stubAlertStore{open: []*domain.Alert{archived}}
	s, _, _, _ := newTestScheduler(alerts, &stubReportStore{}, nil, now)

	require.NoError(t, s.MaintainAlerts(context.Background()))
	assert.Empty(t, alerts.updated)
}

func TestMaintainAlertsPropagatesListError(t *testing.T) {
	alerts := &stubAlertStore{listErr: errors.New("connection refused")}
	s, _, _, _ := newTestScheduler(alerts, &stubReportStore{}, nil, time.Now())

	require.Error(t, s.MaintainAlerts(context.Background()))
}

func TestWriteDailyReport(t *testing.T) {
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	reports := &stubReportStore{report: &domain.DailyReport{
		Date:              day,
		TotalTransactions: 1200,
		HighRiskCount:     14,
		AverageScore:      11.5,
		AlertCount:        20,
	}}
	pub := &stubReportPublisher{}
	s, _, _, _ := newTestScheduler(&stubAlertStore{}, reports, pub, time.Now())

	require.NoError(t, s.WriteDailyReport(context.Background(), day))
	require.NotNil(t, reports.saved)
	assert.Equal(t, 1200, reports.saved.TotalTransactions)
	require.NotNil(t, pub.published)
	assert.Equal(t, day, pub.published.Date)
}

func TestNextReportTime(t *testing.T) {
	cfg, alertsCfg := testSchedulerConfig()
	cfg.DailyReportHourUTC = 2

	now := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	s := New(&stubReloader{}, &stubReloader{}, &stubEvictor{}, &stubAlertStore{}, &stubReportStore{}, nil,
		cfg, alertsCfg, logger.Nop()).WithClock(func() time.Time { return now })
	assert.Equal(t, time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC), s.nextReportTime())

	now = time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), s.nextReportTime())
}
