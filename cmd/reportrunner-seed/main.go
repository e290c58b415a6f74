package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/reportrunner/reportrunner/internal/config"
	"github.com/reportrunner/reportrunner/internal/observability"
	"github.com/reportrunner/reportrunner/internal/seed"
	s3store "github.com/reportrunner/reportrunner/internal/storage/s3"
	"github.com/reportrunner/reportrunner/internal/warehouse"
	warehouseduckdb "github.com/reportrunner/reportrunner/internal/warehouse/duckdb"
)

func main() {
	count := flag.Int("count", 25000, "number of companies to generate")
	batchSize := flag.Int("batch-size", 5000, "rows per parquet file")
	randomSeed := flag.Int64("seed", 42, "deterministic generator seed")
	hydrate := flag.Bool("hydrate", false, "load the uploaded dataset into the configured warehouse after seeding")
	flag.Parse()

	cfg, err := config.LoadFromEnv("reportrunner-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	objectStore, err := s3store.New(ctx, s3store.Config{
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

	seeder := &seed.Seeder{
		Store:     objectStore,
		Logger:    logger,
		Seed:      *randomSeed,
		BatchSize: *batchSize,
	}
	keys, err := seeder.Run(ctx, *count)
	if err != nil {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seed dataset uploaded",
		slog.Int("companies", *count),
		slog.Int("files", len(keys)),
	)

	if !*hydrate {
		return
	}
	if cfg.Warehouse.Driver != warehouse.DriverDuckDB {
		logger.Error("hydration requires the duckdb warehouse driver; load the dataset with your warehouse tooling instead")
		os.Exit(1)
	}

	warehouseDB, err := warehouse.Open(ctx, warehouse.Config{
		Driver: cfg.Warehouse.Driver,
		DSN:    cfg.Warehouse.DSN,
	})
	if err != nil {
		logger.Error("failed to open warehouse", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = warehouseDB.Close() }()

	hydrator := warehouseduckdb.NewHydrator(warehouseDB, objectStore)
	rows, err := hydrator.HydrateTable(ctx, "companies")
	if err != nil {
		logger.Error("hydration failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("warehouse hydrated", slog.Int("rows", rows))
}
