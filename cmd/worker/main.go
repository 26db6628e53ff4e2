package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mavedb/worker/internal/config"
	"github.com/mavedb/worker/internal/decorator"
	"github.com/mavedb/worker/internal/executor"
	"github.com/mavedb/worker/internal/externalclients"
	"github.com/mavedb/worker/internal/jobs"
	"github.com/mavedb/worker/internal/objectstorage"
	"github.com/mavedb/worker/internal/observability"
	"github.com/mavedb/worker/internal/persistence/postgres"
	"github.com/mavedb/worker/internal/queue"
	"github.com/mavedb/worker/internal/workerloop"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown)
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown)

	mp, err := observability.InitMeterProvider(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown)

	slog.InfoContext(ctx, "starting mavedb worker")

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:             cfg.Database.DSN,
		MaxConns:        int32(cfg.Database.MaxOpenConns),
		MinConns:        int32(cfg.Database.MaxIdleConns),
		MaxConnLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to open postgres pool: %w", err)
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	rdb, err := queue.NewClient(ctx, queue.ClientConfig{
		Addr:        cfg.Queue.Addr,
		Password:    cfg.Queue.Password,
		DB:          cfg.Queue.DB,
		DialTimeout: time.Duration(cfg.Queue.DialTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer rdb.Close()
	gw := queue.NewRedisGateway(rdb)

	storage, err := objectstorage.NewStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to init object storage: %w", err)
	}

	clients := &externalclients.Clients{
		VRS:     externalclients.NewHTTPVRSMapper(cfg.External.VRSMappingEndpoint),
		CAR:     externalclients.NewHTTPAlleleRegistry(cfg.External.CARSubmissionEndpoint),
		LDH:     externalclients.NewHTTPLinkedDataHub(cfg.External.LDHSubmissionEndpoint),
		Gnomad:  externalclients.NewHTTPGnomadClient(cfg.External.GnomadEndpoint),
		UniProt: externalclients.NewHTTPUniProtMapper(cfg.External.UniProtEndpoint),
		ClinVar: externalclients.NewHTTPClinvarClient(cfg.External.ClinVarEndpoint),
	}

	execPool := executor.New(cfg.Worker.ExecutorPoolSize)

	registry := decorator.NewRegistry()
	jobs.Register(registry)

	dispatcher := decorator.NewDispatcher(store, gw, registry, execPool, clients, storage, cfg)

	loop := workerloop.New(dispatcher, gw, registry, cfg.Worker.PollInterval)

	slog.InfoContext(ctx, "worker loop started", "job_functions", registry.Names())
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("worker loop stopped: %w", err)
	}

	slog.InfoContext(ctx, "received shutdown signal, exiting")
	return nil
}

func shutdownWithTimeout(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to shut down observability provider", "error", err)
	}
}
