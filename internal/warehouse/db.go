package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open builds the process-scoped pool. The pool size is fixed here, once, so
// concurrent invocations stay within the store's total connection budget.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	driverName, err := resolveDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if driverName == "pgx" && cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse dsn is required for the postgres driver")
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse db: %w", err)
	}

	return db, nil
}

func resolveDriver(driver string) (string, error) {
	switch driver {
	case DriverDuckDB, "":
		return "duckdb", nil
	case DriverPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported warehouse driver %q", driver)
	}
}
