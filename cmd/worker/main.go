package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"

	"github.com/lenderlens/lenderlens/internal/app/classification"
	"github.com/lenderlens/lenderlens/internal/config"
	"github.com/lenderlens/lenderlens/internal/infra/extraction"
	"github.com/lenderlens/lenderlens/internal/infra/inference"
	"github.com/lenderlens/lenderlens/internal/infra/queue/kafka"
	"github.com/lenderlens/lenderlens/internal/infra/storage/classification/postgres"
	"github.com/lenderlens/lenderlens/pkg/common"
	"github.com/lenderlens/lenderlens/pkg/common/logger"
	"github.com/lenderlens/lenderlens/pkg/common/otel"
)

const serviceType = "worker"

func main() {
	_, _ = maxprocs.Set()

	hostname, err := os.Hostname()
	if err != nil {
		stdlog.Fatalf("failed to get hostname: %v", err)
	}

	logEvents := logger.Events{
		Error: func(ctx context.Context, r logger.Record) {
			errorAttrs := map[string]any{
				"error_message": r.Message,
				"error_time":    r.Time.UTC().Format(time.RFC3339),
				"trace_id":      otel.GetTraceID(ctx),
			}
			for k, v := range r.Attributes {
				errorAttrs[k] = v
			}

			errorAttrsJSON, err := json.Marshal(errorAttrs)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to marshal error attributes: %v\n", err)
				return
			}

			fmt.Fprintf(os.Stderr, "Error event: %s, details: %s\n", r.Message, errorAttrsJSON)
		},
	}

	traceIDFn := func(ctx context.Context) string {
		return otel.GetTraceID(ctx)
	}

	svcName := fmt.Sprintf("WORKER-%s", hostname)
	log := logger.NewWithEvents(os.Stdout, logger.LevelInfo, svcName, traceIDFn, logEvents)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, hostname); err != nil {
		log.Error(ctx, "worker terminated", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, hostname string) error {
	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	tp, telemetryTeardown, err := otel.InitTelemetry(log, otel.Config{
		ServiceName:      cfg.ServiceName,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		Probability:      cfg.OtelSamplingRatio,
		ResourceAttributes: map[string]string{
			"library.language": "go",
			"host.name":        hostname,
			"app":              serviceType,
		},
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer telemetryTeardown(ctx)

	tracer := tp.Tracer(cfg.ServiceName)

	ready := &atomic.Bool{}
	healthServer := common.NewHealthServer(ready)
	defer func() {
		if err := healthServer.Server().Shutdown(context.Background()); err != nil {
			log.Error(ctx, "error shutting down health server", "error", err)
		}
	}()

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		return fmt.Errorf("parsing db config: %w", err)
	}
	poolCfg.MinConns = 5
	poolCfg.MaxConns = 20
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("opening db: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(ctx, pool); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info(ctx, "migrations applied, starting worker")

	queue, err := kafka.Connect(kafka.Config{
		Brokers:  cfg.Queue.Brokers,
		Topic:    cfg.Queue.Topic,
		GroupID:  cfg.Queue.GroupID,
		ClientID: cfg.Queue.ClientID,
	}, log, tracer)
	if err != nil {
		return fmt.Errorf("connecting to kafka: %w", err)
	}
	defer queue.Close()

	meter := otel.GetMeterProvider().Meter(cfg.ServiceName)
	metrics, err := classification.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	batches := postgres.NewBatchStore(pool, tracer)
	items := postgres.NewItemStore(pool, tracer)
	results := postgres.NewResultStore(pool, tracer)
	prompts := postgres.NewPromptStore(pool, tracer)

	guard := classification.NewCancellationGuard(items, batches, log, tracer)
	aggregator := classification.NewProgressAggregator(batches, items, log, metrics, tracer)
	executor := classification.NewPipelineExecutor(
		guard, aggregator,
		items, results, prompts,
		extraction.NewClient(cfg.ExtractorURL),
		inference.NewClient(cfg.InferenceURL, cfg.InferenceAPIKey),
		classification.Timeouts{
			Extraction: cfg.Pipeline.ExtractionTimeout,
			Inference:  cfg.Pipeline.InferenceTimeout,
			Overall:    cfg.Pipeline.OverallTimeout,
		},
		log, metrics, tracer,
	)

	workers := classification.NewWorkerService(
		queue, executor, cfg.Pipeline.WorkerConcurrency, log, metrics, tracer)

	ready.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return workers.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}

	log.Info(ctx, "worker shut down cleanly")
	return nil
}

// runMigrations applies all up migrations from db/migrations using a
// database handle opened from the pool.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire connection: %w", err)
	}
	defer conn.Release()

	db := stdlib.OpenDBFromPool(pool)

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create pgx driver: %w", err)
	}

	const migrationsPath = "file://db/migrations"
	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}
