package logger

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with risk-engine specific functionality
type Logger struct {
	*zap.Logger
	serviceName string
}

// ContextKey for request context values
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	AccountIDKey ContextKey = "account_id"
	TraceIDKey   ContextKey = "trace_id"
)

// New creates a new logger instance
func New(serviceName, environment string, debug bool) (*Logger, error) {
	var config zap.Config

	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	// Add service metadata
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
		"env":     environment,
		"pid":     os.Getpid(),
	}

	zapLogger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{
		Logger:      zapLogger,
		serviceName: serviceName,
	}, nil
}

// Nop returns a logger that discards everything; used in tests
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), serviceName: "test"}
}

// Named returns a named sub-logger
func (l *Logger) Named(name string) *Logger {
	return &Logger{
		Logger:      l.Logger.Named(name),
		serviceName: l.serviceName,
	}
}

// WithContext returns a logger with context values
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := []zap.Field{}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if accountID, ok := ctx.Value(AccountIDKey).(string); ok && accountID != "" {
		fields = append(fields, zap.String("account_id", accountID))
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		fields = append(fields, zap.String("trace_id", traceID))
	}

	return &Logger{
		Logger:      l.With(fields...),
		serviceName: l.serviceName,
	}
}

// WithTransaction returns a logger with transaction context
func (l *Logger) WithTransaction(txID, accountID string) *Logger {
	return &Logger{
		Logger: l.With(
			zap.String("transaction_id", txID),
			zap.String("account_id", accountID),
		),
		serviceName: l.serviceName,
	}
}

// EvaluationStarted logs the start of a risk evaluation
func (l *Logger) EvaluationStarted(txID, accountID string) {
	l.Info("evaluation started",
		zap.String("transaction_id", txID),
		zap.String("account_id", accountID),
	)
}

// EvaluationCompleted logs the completion of a risk evaluation
func (l *Logger) EvaluationCompleted(txID string, action string, totalScore float64, degraded bool, durationMs int64) {
	l.Info("evaluation completed",
		zap.String("transaction_id", txID),
		zap.String("action", action),
		zap.Float64("total_score", totalScore),
		zap.Bool("degraded", degraded),
		zap.Int64("duration_ms", durationMs),
	)
}

// DetectorCompleted logs a single detector result
func (l *Logger) DetectorCompleted(txID, detector, status string, score float64, durationMs int64) {
	l.Debug("detector completed",
		zap.String("transaction_id", txID),
		zap.String("detector", detector),
		zap.String("status", status),
		zap.Float64("score", score),
		zap.Int64("duration_ms", durationMs),
	)
}

// DetectorFailed logs a detector converted to an ERROR finding
func (l *Logger) DetectorFailed(txID, detector string, err error) {
	l.Warn("detector failed, using fail-safe contribution",
		zap.String("transaction_id", txID),
		zap.String("detector", detector),
		zap.Error(err),
	)
}

// AlertCreated logs alert creation
func (l *Logger) AlertCreated(alertID, txID string, level string, score float64) {
	l.Warn("alert created",
		zap.String("alert_id", alertID),
		zap.String("transaction_id", txID),
		zap.String("level", level),
		zap.Float64("total_score", score),
	)
}

// StateTransition logs a monitoring-state change
func (l *Logger) StateTransition(txID string, from, to string) {
	l.Info("monitoring state changed",
		zap.String("transaction_id", txID),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// SnapshotReloaded logs a pattern library or watchlist refresh
func (l *Logger) SnapshotReloaded(kind string, entries int) {
	l.Info("snapshot reloaded",
		zap.String("kind", kind),
		zap.Int("entries", entries),
	)
}

// LatencyWarning logs when a check exceeds expected latency
func (l *Logger) LatencyWarning(checkType string, durationMs, thresholdMs int64) {
	l.Warn("latency threshold exceeded",
		zap.String("check_type", checkType),
		zap.Int64("duration_ms", durationMs),
		zap.Int64("threshold_ms", thresholdMs),
	)
}

// Helper field functions

// ErrorField creates an error field
func ErrorField(err error) zap.Field {
	return zap.Error(err)
}

// DurationField creates a duration field
func DurationField(name string, d time.Duration) zap.Field {
	return zap.Duration(name, d)
}

// StringField creates a string field
func StringField(key, value string) zap.Field {
	return zap.String(key, value)
}

// IntField creates an int field
func IntField(key string, value int) zap.Field {
	return zap.Int(key, value)
}

// Float64Field creates a float64 field
func Float64Field(key string, value float64) zap.Field {
	return zap.Float64(key, value)
}

// BoolField creates a bool field
func BoolField(key string, value bool) zap.Field {
	return zap.Bool(key, value)
}
