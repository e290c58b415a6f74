package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/reportrunner/reportrunner/internal/jobstore"
)

func finishedJob() jobstore.AnalyticsJob {
	completed := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	return jobstore.AnalyticsJob{
		JobID:       "job-42",
		Operation:   "count_analysis",
		Status:      jobstore.StatusCompleted,
		CompletedAt: &completed,
	}
}

func TestWebhookNotifierPostsPayload(t *testing.T) {
	var received webhookPayload
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier(server.URL, time.Second, nil)
	notifier.JobFinished(context.Background(), finishedJob())

	if contentType != "application/json" {
		t.Fatalf("Content-Type = %q", contentType)
	}
	if received.JobID != "job-42" || received.Operation != "count_analysis" {
		t.Fatalf("payload = %+v", received)
	}
	if received.Status != string(jobstore.StatusCompleted) {
		t.Fatalf("status = %q", received.Status)
	}
	if received.CompletedAt == nil {
		t.Fatal("completed_at missing")
	}
}

func TestWebhookNotifierIncludesErrorType(t *testing.T) {
	var received webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
	}))
	defer server.Close()

	job := finishedJob()
	job.Status = jobstore.StatusFailed
	job.Error = &jobstore.ErrorInfo{Type: "ExecutionError", Message: "query failed"}

	NewWebhookNotifier(server.URL, time.Second, nil).JobFinished(context.Background(), job)
	if received.ErrorType != "ExecutionError" {
		t.Fatalf("error_type = %q", received.ErrorType)
	}
}

func TestWebhookNotifierSwallowsDeliveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	// Bad status, unreachable endpoint, nil logger: none of these may panic
	// or block the caller.
	NewWebhookNotifier(server.URL, time.Second, nil).JobFinished(context.Background(), finishedJob())
	NewWebhookNotifier("http://127.0.0.1:1", 100*time.Millisecond, nil).JobFinished(context.Background(), finishedJob())
	NewWebhookNotifier("://bad-url", time.Second, nil).JobFinished(context.Background(), finishedJob())
}

func TestLogNotifierNilLogger(t *testing.T) {
	(&LogNotifier{}).JobFinished(context.Background(), finishedJob())
}
