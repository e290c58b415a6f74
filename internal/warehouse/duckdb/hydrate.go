// Package duckdb hydrates warehouse tables from parquet datasets kept in
// object storage. It is the dev/test path: the API process downloads the
// dataset files at startup and materializes them into its embedded DuckDB,
// so operations run against real tables without a standing warehouse.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/reportrunner/reportrunner/internal/storage"
)

// ObjectSource is the subset of the object store the hydrator needs.
type ObjectSource interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

type Hydrator struct {
	DB    *sql.DB
	Store ObjectSource
}

func NewHydrator(db *sql.DB, store ObjectSource) *Hydrator {
	return &Hydrator{DB: db, Store: store}
}

// HydrateTable discovers every parquet object under datasets/<table>/,
// downloads them to a scratch directory and materializes the table via
// read_parquet. The scratch files are removed afterwards; the data lives in
// the DuckDB instance, not the filesystem.
func (h *Hydrator) HydrateTable(ctx context.Context, tableName string) (int, error) {
	if h.DB == nil {
		return 0, fmt.Errorf("database handle is required")
	}
	if h.Store == nil {
		return 0, fmt.Errorf("object store is required")
	}
	if err := storage.ValidatePathComponent(tableName, "table name"); err != nil {
		return 0, err
	}

	prefix := "datasets/" + tableName + "/"
	objects, err := h.Store.List(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list dataset objects for %q: %w", tableName, err)
	}

	var keys []string
	for _, object := range objects {
		if strings.HasSuffix(object.Key, ".parquet") {
			keys = append(keys, object.Key)
		}
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("no parquet objects found under %q", prefix)
	}

	workDir, err := os.MkdirTemp("", "reportrunner-hydrate-")
	if err != nil {
		return 0, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths := make([]string, 0, len(keys))
	for index, key := range keys {
		reader, err := h.Store.Get(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("get object %q: %w", key, err)
		}
		localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", tableName, index))
		if err := writeFile(localPath, reader); err != nil {
			_ = reader.Close()
			return 0, fmt.Errorf("write scratch file %q: %w", localPath, err)
		}
		if err := reader.Close(); err != nil {
			return 0, fmt.Errorf("close object %q: %w", key, err)
		}
		localPaths = append(localPaths, localPath)
	}

	createSQL := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_parquet(%s)`,
		quoteIdent(tableName), quoteStringArray(localPaths))
	if _, err := h.DB.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("materialize table %q: %w", tableName, err)
	}

	var rowCount int
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(tableName))
	if err := h.DB.QueryRowContext(ctx, countSQL).Scan(&rowCount); err != nil {
		return 0, fmt.Errorf("count rows in %q: %w", tableName, err)
	}
	return rowCount, nil
}

func writeFile(localPath string, reader io.Reader) error {
	file, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
