package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/reportrunner/reportrunner/internal/analytics"
)

func newMockExecutor(t *testing.T) (*SQLExecutor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLExecutor(db), mock
}

func TestExecuteMapsRowsToRecords(t *testing.T) {
	executor, mock := newMockExecutor(t)

	loaded := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT industry, company_count, last_loaded FROM summary").
		WillReturnRows(sqlmock.NewRows([]string{"industry", "company_count", "last_loaded"}).
			AddRow([]byte("software"), int64(42), loaded).
			AddRow([]byte("manufacturing"), int64(17), loaded))

	rowSet, err := executor.Execute(context.Background(), "SELECT industry, company_count, last_loaded FROM summary")
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}

	if len(rowSet.Columns) != 3 || rowSet.Columns[0] != "industry" {
		t.Fatalf("Columns = %v", rowSet.Columns)
	}
	if len(rowSet.Rows) != 2 {
		t.Fatalf("Rows = %d", len(rowSet.Rows))
	}
	// Driver byte slices become strings so the rows JSON-encode cleanly.
	if rowSet.Rows[0]["industry"] != "software" {
		t.Fatalf("industry = %#v", rowSet.Rows[0]["industry"])
	}
	if rowSet.Rows[0]["company_count"] != int64(42) {
		t.Fatalf("company_count = %#v", rowSet.Rows[0]["company_count"])
	}
	if got, ok := rowSet.Rows[0]["last_loaded"].(time.Time); !ok || !got.Equal(loaded) {
		t.Fatalf("last_loaded = %#v", rowSet.Rows[0]["last_loaded"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteBindsArguments(t *testing.T) {
	executor, mock := newMockExecutor(t)

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT region FROM companies WHERE created_at >= ?").
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"region"}).AddRow("europe"))

	rowSet, err := executor.Execute(context.Background(),
		"SELECT region FROM companies WHERE created_at >= ?", cutoff)
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if len(rowSet.Rows) != 1 || rowSet.Rows[0]["region"] != "europe" {
		t.Fatalf("rows = %+v", rowSet.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecuteEmptyResultKeepsColumns(t *testing.T) {
	executor, mock := newMockExecutor(t)
	mock.ExpectQuery("SELECT name FROM companies WHERE 1=0").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	rowSet, err := executor.Execute(context.Background(), "SELECT name FROM companies WHERE 1=0")
	if err != nil {
		t.Fatalf("Execute() = %v", err)
	}
	if len(rowSet.Columns) != 1 || rowSet.Rows == nil || len(rowSet.Rows) != 0 {
		t.Fatalf("rowSet = %+v", rowSet)
	}
}

func TestExecuteQueryFailureIsExecutionError(t *testing.T) {
	executor, mock := newMockExecutor(t)
	mock.ExpectQuery("SELECT boom").WillReturnError(errors.New("relation does not exist"))

	_, err := executor.Execute(context.Background(), "SELECT boom")
	if err == nil {
		t.Fatal("Execute() succeeded on driver failure")
	}
	if analytics.KindOf(err) != analytics.KindExecution {
		t.Fatalf("kind = %v", analytics.KindOf(err))
	}
	if !analytics.Retryable(err) {
		t.Fatal("execution error not retryable")
	}
}

func TestHealthCheckFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	executor := NewSQLExecutor(db)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	if err := executor.HealthCheck(context.Background()); err == nil {
		t.Fatal("HealthCheck() succeeded on dead warehouse")
	}

	mock.ExpectPing()
	if err := executor.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() = %v", err)
	}
}
