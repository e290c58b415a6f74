// Package jobstore tracks asynchronous analytics jobs through their status
// lifecycle. Records are mutated only by the workflow orchestrator and expire
// by TTL; the engine never reads an expired record as valid.
package jobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DefaultTTL is how long a job record stays readable after submission.
const DefaultTTL = 30 * 24 * time.Hour

var (
	ErrNotFound = errors.New("job not found")
	ErrConflict = errors.New("job already exists")
	// ErrStaleTransition marks an update that would move a job's status
	// backward, e.g. a racing retry writing running over completed.
	ErrStaleTransition = errors.New("stale status transition")
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusRunning, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// allowedTransitions lists every forward edge. The only path that skips
// running is submitted -> failed, for validation failures that occur before
// any execution attempt.
var allowedTransitions = map[Status][]Status{
	StatusSubmitted: {StatusRunning, StatusFailed},
	StatusRunning:   {StatusCompleted, StatusFailed},
}

func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ErrorInfo is the failure payload stored on a failed job.
type ErrorInfo struct {
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// AnalyticsJob is the record kept per asynchronous execution. ExpireAt is set
// at creation and immutable.
type AnalyticsJob struct {
	JobID       string                    `json:"job_id"`
	Operation   string                    `json:"operation"`
	Parameters  map[string]any            `json:"parameters,omitempty"`
	Status      Status                    `json:"status"`
	SubmittedAt time.Time                 `json:"submitted_at"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Result      *analytics.ResultEnvelope `json:"result,omitempty"`
	Error       *ErrorInfo                `json:"error,omitempty"`
	ExpireAt    time.Time                 `json:"expire_at"`
}

// Fields carries the terminal-state payload applied together with a status
// update.
type Fields struct {
	StartedAt   *time.Time
	CompletedAt *time.Time
	Result      *analytics.ResultEnvelope
	Error       *ErrorInfo
}

// Store is the conditional key-value contract consumed by the orchestrator.
// UpdateStatus is compare-and-set on the current status: re-applying the
// current status is an idempotent no-op, a backward move is rejected with
// ErrStaleTransition.
type Store interface {
	Create(ctx context.Context, job AnalyticsJob) error
	UpdateStatus(ctx context.Context, jobID string, newStatus Status, fields Fields) error
	Get(ctx context.Context, jobID string) (AnalyticsJob, error)
}

// Queue feeds submitted job ids to the async worker.
type Queue interface {
	Enqueue(ctx context.Context, jobID string) error
	Dequeue(ctx context.Context, timeout time.Duration) (string, error)
}

// Scanner enumerates live records for the worker watchdog. Implementations
// may return jobs in any order.
type Scanner interface {
	ListByStatus(ctx context.Context, status Status) ([]AnalyticsJob, error)
}

// ErrNoPendingJobs is returned by Dequeue when the timeout elapses with an
// empty queue.
var ErrNoPendingJobs = errors.New("no pending jobs")

// ApplyTransition mutates job for a status change, enforcing the lifecycle
// invariants: result is set iff completed, error is set iff failed. It
// returns false without touching the job when newStatus equals the current
// status (idempotent re-apply), and ErrStaleTransition for any other
// non-forward edge.
func ApplyTransition(job *AnalyticsJob, newStatus Status, fields Fields) (bool, error) {
	if !newStatus.Valid() {
		return false, fmt.Errorf("invalid status %q", newStatus)
	}
	if job.Status == newStatus {
		return false, nil
	}
	if !CanTransition(job.Status, newStatus) {
		return false, fmt.Errorf("%w: %s -> %s", ErrStaleTransition, job.Status, newStatus)
	}

	if fields.StartedAt != nil {
		job.StartedAt = fields.StartedAt
	}

	switch newStatus {
	case StatusCompleted:
		if fields.Result == nil {
			return false, fmt.Errorf("completed status requires a result")
		}
		job.Result = fields.Result
		job.Error = nil
		job.CompletedAt = fields.CompletedAt
	case StatusFailed:
		if fields.Error == nil {
			return false, fmt.Errorf("failed status requires error info")
		}
		job.Error = fields.Error
		job.Result = nil
		job.CompletedAt = fields.CompletedAt
	default:
		job.Result = nil
		job.Error = nil
	}

	job.Status = newStatus
	return true, nil
}
