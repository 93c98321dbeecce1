package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

type stubRiskService struct {
	assessment *domain.RiskAssessment
	err        error
	asyncCalls int
}

func (s *stubRiskService) Evaluate(_ context.Context, _ *domain.Transaction) (*domain.RiskAssessment, error) {
	return s.assessment, s.err
}

func (s *stubRiskService) EvaluateAsync(context.Context, *domain.Transaction) { s.asyncCalls++ }

func (s *stubRiskService) AverageLatency() float64 { return 12.5 }

func (s *stubRiskService) EvaluationCount() int64 { return 42 }

type stubAssessments struct {
	assessment *domain.RiskAssessment
	err        error
}

func (s *stubAssessments) GetAssessment(context.Context, uuid.UUID) (*domain.RiskAssessment, error) {
	return s.assessment, s.err
}

type stubAlerts struct {
	alert *domain.Alert
	err   error
}

func (s *stubAlerts) GetAlert(context.Context, uuid.UUID) (*domain.Alert, error) {
	return s.alert, s.err
}

func (s *stubAlerts) UpdateAlert(context.Context, *domain.Alert) error { return nil }

type stubStates struct {
	current domain.MonitoringStatus
	set     domain.MonitoringStatus
}

func (s *stubStates) GetMonitoringState(context.Context, uuid.UUID) (domain.MonitoringStatus, error) {
	return s.current, nil
}

func (s *stubStates) SetMonitoringState(_ context.Context, _ uuid.UUID, _, to domain.MonitoringStatus) error {
	s.set = to
	return nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type serverFixture struct {
	server  *Server
	service *stubRiskService
	alerts  *stubAlerts
	states  *stubStates
	db      *stubPinger
	redis   *stubPinger
}

func newServerFixture(assessments *stubAssessments) *serverFixture {
	cfg := &config.Config{}
	cfg.Security.JWTSecret = testSecret
	cfg.Security.AllowedOrigins = []string{"*"}
	cfg.Server.Port = 0

	f := &serverFixture{
		service: &stubRiskService{},
		alerts:  &stubAlerts{},
		states:  &stubStates{current: domain.MonitoringHeld},
		db:      &stubPinger{},
		redis:   &stubPinger{},
	}
	f.server = NewServer(f.service, assessments, f.alerts, f.states, f.db, f.redis, cfg, logger.Nop())
	return f
}

func (f *serverFixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if path != "/health" {
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &ServiceClaims{
			Service: "payment-service",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}).SignedString([]byte(testSecret))
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthOK(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthDegraded(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.redis.err = errors.New("connection refused")

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestEvaluateRequiresAuth(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/evaluate", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	f.server.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEvaluateReturnsAssessment(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.service.assessment = &domain.RiskAssessment{
		ID:         uuid.New(),
		TotalScore: 35,
		RiskLevel:  domain.RiskLevelLow,
	}

	body := `{"id":"` + uuid.NewString() + `","account_id":"` + uuid.NewString() +
		`","amount":25,"currency":"USD","type":"PURCHASE","timestamp":"2026-03-10T14:00:00Z","merchant":{"category":"GROCERY"}}`
	rec := f.do(http.MethodPost, "/api/v1/risk/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 35.0, got.TotalScore)
}

func TestEvaluateInvalidTransaction(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.service.err = domain.ErrInvalidTransaction

	rec := f.do(http.MethodPost, "/api/v1/risk/evaluate", "{}")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestEvaluateAsyncValidatesBeforeQueueing(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	rec := f.do(http.MethodPost, "/api/v1/risk/evaluate/async", "{}")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, f.service.asyncCalls)

	body := `{"id":"` + uuid.NewString() + `","account_id":"` + uuid.NewString() +
		`","amount":25,"currency":"USD","type":"PURCHASE","timestamp":"2026-03-10T14:00:00Z","merchant":{"category":"GROCERY"}}`
	rec = f.do(http.MethodPost, "/api/v1/risk/evaluate/async", body)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.service.asyncCalls)
}

func TestGetAssessmentNotFound(t *testing.T) {
	f := newServerFixture(&stubAssessments{err: domain.ErrAssessmentNotFound})

	rec := f.do(http.MethodGet, "/api/v1/risk/assessments/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAssessmentBadID(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	rec := f.do(http.MethodGet, "/api/v1/risk/assessments/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	rec := f.do(http.MethodGet, "/api/v1/risk/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 42.0, body["evaluations"])
	assert.Equal(t, 12.5, body["avg_latency_ms"])
}

func TestCloseAlert(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.alerts.alert = &domain.Alert{
		ID:     uuid.New(),
		Level:  domain.RiskLevelMedium,
		Status: domain.AlertStatusOpen,
	}

	rec := f.do(http.MethodPost, "/api/v1/alerts/"+f.alerts.alert.ID.String()+"/close",
		`{"resolution":"reviewed, legitimate purchase"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.AlertStatusClosed, f.alerts.alert.Status)
}

func TestCloseAlertRequiresResolution(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.alerts.alert = &domain.Alert{ID: uuid.New(), Status: domain.AlertStatusOpen}

	rec := f.do(http.MethodPost, "/api/v1/alerts/"+f.alerts.alert.ID.String()+"/close", "{}")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseAlertConflictOnClosed(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.alerts.alert = &domain.Alert{ID: uuid.New(), Status: domain.AlertStatusClosed}

	rec := f.do(http.MethodPost, "/api/v1/alerts/"+f.alerts.alert.ID.String()+"/close",
		`{"resolution":"duplicate"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewApprovesHeldTransaction(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	rec := f.do(http.MethodPost, "/api/v1/transactions/"+uuid.NewString()+"/review",
		`{"decision":"APPROVE","reason":"verified with cardholder"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.MonitoringApproved, f.states.set)
}

func TestReviewRejectsInvalidDecision(t *testing.T) {
	f := newServerFixture(&stubAssessments{})

	rec := f.do(http.MethodPost, "/api/v1/transactions/"+uuid.NewString()+"/review",
		`{"decision":"ESCALATE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReviewConflictOnTerminalState(t *testing.T) {
	f := newServerFixture(&stubAssessments{})
	f.states.current = domain.MonitoringBlocked

	rec := f.do(http.MethodPost, "/api/v1/transactions/"+uuid.NewString()+"/review",
		`{"decision":"APPROVE","reason":"late review"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
