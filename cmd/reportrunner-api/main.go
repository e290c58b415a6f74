package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/api"
	"github.com/reportrunner/reportrunner/internal/auth"
	"github.com/reportrunner/reportrunner/internal/config"
	"github.com/reportrunner/reportrunner/internal/engine"
	redisstore "github.com/reportrunner/reportrunner/internal/jobstore/redis"
	"github.com/reportrunner/reportrunner/internal/notify"
	"github.com/reportrunner/reportrunner/internal/observability"
	"github.com/reportrunner/reportrunner/internal/reports"
	"github.com/reportrunner/reportrunner/internal/spill"
	s3store "github.com/reportrunner/reportrunner/internal/storage/s3"
	"github.com/reportrunner/reportrunner/internal/warehouse"
	warehouseduckdb "github.com/reportrunner/reportrunner/internal/warehouse/duckdb"
)

func main() {
	cfg, err := config.LoadFromEnv("reportrunner-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	warehouseDB, err := warehouse.Open(context.Background(), warehouse.Config{
		Driver:          cfg.Warehouse.Driver,
		DSN:             cfg.Warehouse.DSN,
		MaxOpenConns:    cfg.Warehouse.MaxOpenConns,
		MaxIdleConns:    cfg.Warehouse.MaxIdleConns,
		ConnMaxIdleTime: cfg.Warehouse.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Warehouse.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = warehouseDB.Close() }()

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Warehouse.Driver == warehouse.DriverDuckDB {
		hydrator := warehouseduckdb.NewHydrator(warehouseDB, objectStore)
		rows, err := hydrator.HydrateTable(context.Background(), "companies")
		if err != nil {
			logger.Warn("companies dataset not hydrated; run reportrunner-seed first", slog.Any("error", err))
		} else {
			logger.Info("hydrated companies dataset", slog.Int("rows", rows))
		}
	}

	jobStore, err := redisstore.New(cfg.JobStore.RedisURL)
	if err != nil {
		logger.Error("failed to connect to job store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobStore.Close() }()

	executor := warehouse.NewSQLExecutor(warehouseDB)
	registry := analytics.NewRegistry()
	if err := reports.NewOperations(executor).Register(registry); err != nil {
		logger.Error("failed to register operations", slog.Any("error", err))
		os.Exit(1)
	}

	router := spill.NewRouter(objectStore)
	router.RowThreshold = cfg.Router.RowThreshold
	router.ByteThreshold = cfg.Router.ByteThreshold

	var notifier notify.Notifier = &notify.LogNotifier{Logger: logger}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger)
	}

	jobEngine := &engine.Engine{
		Registry:     registry,
		Router:       router,
		Jobs:         jobStore,
		Notifier:     notifier,
		Logger:       logger,
		JobTTL:       cfg.JobStore.JobTTL,
		MaxRetries:   cfg.Engine.MaxRetries,
		RetryBackoff: cfg.Engine.RetryBackoff,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Worker.Embedded {
		worker := &engine.Worker{
			Engine:           jobEngine,
			Queue:            jobStore,
			Scanner:          jobStore,
			Logger:           logger,
			DequeueTimeout:   cfg.Worker.DequeueTimeout,
			WatchdogInterval: cfg.Worker.WatchdogInterval,
			StuckAfter:       cfg.Worker.StuckAfter,
		}
		go func() { _ = worker.Run(ctx) }()
		go func() { _ = worker.RunWatchdog(ctx) }()
	}

	deps := api.Dependencies{
		Logger:   logger,
		Engine:   jobEngine,
		Driver:   &engine.QueueDriver{Queue: jobStore},
		Registry: registry,
		Router:   router,
		Jobs:     jobStore,
		Readiness: api.CombineReadinessChecks(
			api.CheckWarehouse(executor.HealthCheck),
			api.CheckObjectStoreConfig(cfg),
			jobStore.Ping,
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
