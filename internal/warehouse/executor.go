package warehouse

import (
	"context"
	"database/sql"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
)

// SQLExecutor runs statements against the pooled *sql.DB. Every driver
// failure is mapped to a single retryable ExecutionError carrying the
// underlying message.
type SQLExecutor struct {
	db *sql.DB
}

func NewSQLExecutor(db *sql.DB) *SQLExecutor {
	return &SQLExecutor{db: db}
}

func (e *SQLExecutor) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := e.db.PingContext(pingCtx); err != nil {
		return analytics.WrapError(analytics.KindExecution, "warehouse is unreachable", err)
	}
	return nil
}

func (e *SQLExecutor) Execute(ctx context.Context, sqlText string, args ...any) (analytics.RowSet, error) {
	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return analytics.RowSet{}, analytics.WrapError(analytics.KindExecution, "query failed", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return analytics.RowSet{}, analytics.WrapError(analytics.KindExecution, "read result columns", err)
	}

	records := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return analytics.RowSet{}, analytics.WrapError(analytics.KindExecution, "scan result row", err)
		}

		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return analytics.RowSet{}, analytics.WrapError(analytics.KindExecution, "iterate result rows", err)
	}

	return analytics.RowSet{Columns: columns, Rows: records}, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case time.Time:
		return typed.UTC()
	default:
		return typed
	}
}
