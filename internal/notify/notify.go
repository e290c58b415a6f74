// Package notify delivers fire-and-forget completion notifications. Delivery
// failures are logged and dropped; they never revert a job's status.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/reportrunner/reportrunner/internal/jobstore"
)

type Notifier interface {
	JobFinished(ctx context.Context, job jobstore.AnalyticsJob)
}

// LogNotifier records terminal transitions in the service log. It is the
// default when no webhook is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) JobFinished(ctx context.Context, job jobstore.AnalyticsJob) {
	if n.Logger == nil {
		return
	}
	n.Logger.InfoContext(ctx, "job finished",
		slog.String("job_id", job.JobID),
		slog.String("operation", job.Operation),
		slog.String("status", string(job.Status)),
	)
}

// WebhookNotifier POSTs a small JSON summary to a configured endpoint.
type WebhookNotifier struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

type webhookPayload struct {
	JobID       string     `json:"job_id"`
	Operation   string     `json:"operation"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorType   string     `json:"error_type,omitempty"`
}

func (n *WebhookNotifier) JobFinished(ctx context.Context, job jobstore.AnalyticsJob) {
	payload := webhookPayload{
		JobID:       job.JobID,
		Operation:   job.Operation,
		Status:      string(job.Status),
		CompletedAt: job.CompletedAt,
	}
	if job.Error != nil {
		payload.ErrorType = job.Error.Type
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		n.logFailure(ctx, job.JobID, err)
		return
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(encoded))
	if err != nil {
		n.logFailure(ctx, job.JobID, err)
		return
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := n.Client.Do(request)
	if err != nil {
		n.logFailure(ctx, job.JobID, err)
		return
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= 300 {
		n.logFailure(ctx, job.JobID, fmt.Errorf("webhook returned status %d", response.StatusCode))
	}
}

func (n *WebhookNotifier) logFailure(ctx context.Context, jobID string, err error) {
	if n.Logger == nil {
		return
	}
	n.Logger.WarnContext(ctx, "job notification failed",
		slog.String("job_id", jobID),
		slog.Any("error", err),
	)
}
