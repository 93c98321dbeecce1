package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/domain"
	"github.com/monay/risk-engine/internal/pkg/logger"
)

// RiskService is the engine surface the HTTP layer drives
type RiskService interface {
	Evaluate(ctx context.Context, tx *domain.Transaction) (*domain.RiskAssessment, error)
	EvaluateAsync(ctx context.Context, tx *domain.Transaction)
	AverageLatency() float64
	EvaluationCount() int64
}

// AssessmentRepository reads persisted assessments
type AssessmentRepository interface {
	GetAssessment(ctx context.Context, transactionID uuid.UUID) (*domain.RiskAssessment, error)
}

// AlertRepository reads and updates alerts for manual review
type AlertRepository interface {
	GetAlert(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	UpdateAlert(ctx context.Context, a *domain.Alert) error
}

// StateRepository drives the manual-review state transitions
type StateRepository interface {
	GetMonitoringState(ctx context.Context, transactionID uuid.UUID) (domain.MonitoringStatus, error)
	SetMonitoringState(ctx context.Context, transactionID uuid.UUID, from, to domain.MonitoringStatus) error
}

// Pinger reports backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the echo HTTP surface of the engine
type Server struct {
	echo        *echo.Echo
	engine      RiskService
	assessments AssessmentRepository
	alerts      AlertRepository
	states      StateRepository
	db          Pinger
	redis       Pinger

	cfg *config.Config
	log *logger.Logger
}

// NewServer builds the echo server and registers all routes
func NewServer(
	engine RiskService,
	assessments AssessmentRepository,
	alerts AlertRepository,
	states StateRepository,
	db Pinger,
	redis Pinger,
	cfg *config.Config,
	log *logger.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Security.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
	}))

	s := &Server{
		echo:        e,
		engine:      engine,
		assessments: assessments,
		alerts:      alerts,
		states:      states,
		db:          db,
		redis:       redis,
		cfg:         cfg,
		log:         log.Named("http_server"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.health)

	v1 := s.echo.Group("/api/v1", JWTAuth(s.cfg.Security.JWTSecret))
	v1.POST("/risk/evaluate", s.evaluate)
	v1.POST("/risk/evaluate/async", s.evaluateAsync)
	v1.GET("/risk/assessments/:transaction_id", s.getAssessment)
	v1.GET("/risk/stats", s.stats)
	v1.GET("/alerts/:id", s.getAlert)
	v1.POST("/alerts/:id/close", s.closeAlert)
	v1.POST("/transactions/:id/review", s.reviewTransaction)
}

// Start serves until the listener fails or Shutdown is called
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.log.Info("http server starting", logger.StringField("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	ctx := c.Request().Context()
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if err := s.db.Ping(ctx); err != nil {
		status["database"] = err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if err := s.redis.Ping(ctx); err != nil {
		status["redis"] = err.Error()
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}
