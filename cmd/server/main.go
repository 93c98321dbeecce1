package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/monay/risk-engine/internal/api"
	"github.com/monay/risk-engine/internal/cache"
	"github.com/monay/risk-engine/internal/config"
	"github.com/monay/risk-engine/internal/detector"
	"github.com/monay/risk-engine/internal/engine"
	"github.com/monay/risk-engine/internal/events"
	"github.com/monay/risk-engine/internal/patterns"
	"github.com/monay/risk-engine/internal/pkg/logger"
	"github.com/monay/risk-engine/internal/profile"
	"github.com/monay/risk-engine/internal/scheduler"
	"github.com/monay/risk-engine/internal/store"
	"github.com/monay/risk-engine/internal/watchlist"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load configuration: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, cfg.Telemetry.Debug)
	if err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := initTracing(ctx, &cfg.Telemetry)
	if err != nil {
		log.Warn("tracing disabled", logger.ErrorField(err))
	}

	// Storage and caches
	db, err := store.New(ctx, &cfg.Database, log)
	if err != nil {
		log.Fatal("database connection failed", logger.ErrorField(err))
	}
	defer db.Close()

	velocity := cache.NewVelocityCache(&cfg.Redis, log)
	defer velocity.Close()
	if err := velocity.Ping(ctx); err != nil {
		log.Fatal("redis connection failed", logger.ErrorField(err))
	}

	// Reference snapshots
	library := patterns.NewLibrary(db, log)
	if err := library.Reload(ctx); err != nil {
		log.Fatal("initial pattern load failed", logger.ErrorField(err))
	}
	index := watchlist.NewIndex(db, log)
	if err := index.Reload(ctx); err != nil {
		log.Fatal("initial watchlist load failed", logger.ErrorField(err))
	}

	profiles := profile.NewCache(db, log)

	// Detectors
	detectors := []detector.Detector{
		detector.NewRuleMatcher(db, log),
		detector.NewStatisticalDetector(db, &cfg.Detectors, log),
		detector.NewBehavioralDetector(db, &cfg.Detectors, log),
		detector.NewVelocityDetector(velocity, &cfg.Detectors, log),
		detector.NewNetworkDetector(db, &cfg.Detectors, log),
		detector.NewSanctionsDetector(&cfg.Detectors, log),
		detector.NewPredictiveDetector(db, detector.NewHeuristicScorer(), &cfg.Detectors, log),
	}

	// Event producer doubles as the wallet/notification/review collaborators
	producer, err := events.NewProducer(&cfg.Kafka, log)
	if err != nil {
		log.Fatal("kafka producer failed", logger.ErrorField(err))
	}
	defer producer.Close()

	executor := engine.NewExecutor(db, db, db, producer, producer, producer, producer, log)
	policy := engine.NewPolicy(&cfg.Engine)
	riskEngine := engine.New(detectors, profiles, library, index, velocity, policy, executor, &cfg.Engine, log)

	// Async path: transaction events from the payment subsystem
	consumer, err := events.NewTransactionConsumer(&cfg.Kafka, riskEngine, log)
	if err != nil {
		log.Fatal("kafka consumer failed", logger.ErrorField(err))
	}
	go func() {
		if err := consumer.Start(ctx); err != nil {
			log.Error("transaction consumer stopped", logger.ErrorField(err))
		}
	}()

	// Background jobs
	jobs := scheduler.New(library, index, profiles, db, db, producer, &cfg.Scheduler, &cfg.Alerts, log)
	jobs.Start(ctx)

	// HTTP surface
	server := api.NewServer(riskEngine, db, db, db, db, velocity, cfg, log)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", logger.ErrorField(err))
		}
	}()

	log.Info("risk engine started",
		logger.IntField("port", cfg.Server.Port),
		logger.StringField("environment", cfg.Telemetry.Environment))

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.ErrorField(err))
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("tracer shutdown failed", logger.ErrorField(err))
		}
	}
	log.Info("shutdown complete")
}

// initTracing configures the OTLP gRPC exporter and global tracer provider
func initTracing(ctx context.Context, cfg *config.TelemetryConfig) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRatio))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
