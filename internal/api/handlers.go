package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/monay/risk-engine/internal/domain"
)

func (s *Server) evaluate(c echo.Context) error {
	var tx domain.Transaction
	if err := c.Bind(&tx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed transaction")
	}

	assessment, err := s.engine.Evaluate(c.Request().Context(), &tx)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "evaluation failed")
	}
	return c.JSON(http.StatusOK, assessment)
}

func (s *Server) evaluateAsync(c echo.Context) error {
	var tx domain.Transaction
	if err := c.Bind(&tx); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed transaction")
	}
	if err := tx.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	s.engine.EvaluateAsync(c.Request().Context(), &tx)
	return c.JSON(http.StatusAccepted, map[string]string{
		"transaction_id": tx.ID.String(),
		"status":         "queued",
	})
}

func (s *Server) getAssessment(c echo.Context) error {
	txID, err := uuid.Parse(c.Param("transaction_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transaction id")
	}

	assessment, err := s.assessments.GetAssessment(c.Request().Context(), txID)
	if err != nil {
		if errors.Is(err, domain.ErrAssessmentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "assessment lookup failed")
	}
	return c.JSON(http.StatusOK, assessment)
}

func (s *Server) stats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"evaluations":    s.engine.EvaluationCount(),
		"avg_latency_ms": s.engine.AverageLatency(),
	})
}

func (s *Server) getAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}

	alert, err := s.alerts.GetAlert(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "alert lookup failed")
	}
	return c.JSON(http.StatusOK, alert)
}

type closeAlertRequest struct {
	Resolution string `json:"resolution"`
}

func (s *Server) closeAlert(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid alert id")
	}
	var req closeAlertRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if req.Resolution == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "resolution is required")
	}

	ctx := c.Request().Context()
	alert, err := s.alerts.GetAlert(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrAlertNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "alert not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "alert lookup failed")
	}

	if err := alert.Close(req.Resolution, time.Now().UTC()); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err := s.alerts.UpdateAlert(ctx, alert); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "alert update failed")
	}
	return c.JSON(http.StatusOK, alert)
}

type reviewRequest struct {
	Decision string `json:"decision"` // APPROVE or BLOCK
	Reason   string `json:"reason"`
}

// reviewTransaction resolves a HELD transaction after manual review
func (s *Server) reviewTransaction(c echo.Context) error {
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transaction id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	var target domain.MonitoringStatus
	switch req.Decision {
	case "APPROVE":
		target = domain.MonitoringApproved
	case "BLOCK":
		target = domain.MonitoringBlocked
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be APPROVE or BLOCK")
	}

	ctx := c.Request().Context()
	current, err := s.states.GetMonitoringState(ctx, txID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "state lookup failed")
	}

	next, err := current.Transition(target)
	if err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err := s.states.SetMonitoringState(ctx, txID, current, next); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "state update failed")
	}

	s.log.StateTransition(txID.String(), string(current), string(next))
	return c.JSON(http.StatusOK, map[string]string{
		"transaction_id": txID.String(),
		"status":         string(next),
	})
}
