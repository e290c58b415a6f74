// Package warehouse owns access to the relational analytics store. The
// connection pool is bounded and process-scoped: constructed once in main and
// injected, never opened per request.
package warehouse

import (
	"context"

	"github.com/reportrunner/reportrunner/internal/analytics"
)

// Executor runs one parameterized statement and returns the resulting rows.
// Implementations do not retry; retry policy belongs to the orchestrator.
type Executor interface {
	Execute(ctx context.Context, sqlText string, args ...any) (analytics.RowSet, error)
}
