// Package engine is the workflow orchestrator: it sequences job-record
// creation, operation execution and result routing as a small state machine
// (submitted -> running -> completed | failed), shared by the synchronous and
// asynchronous paths.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/jobstore"
	"github.com/reportrunner/reportrunner/internal/notify"
	"github.com/reportrunner/reportrunner/internal/observability"
	"github.com/reportrunner/reportrunner/internal/spill"
)

type Engine struct {
	Registry     *analytics.Registry
	Router       *spill.Router
	Jobs         jobstore.Store
	Notifier     notify.Notifier
	Logger       *slog.Logger
	Clock        func() time.Time
	JobTTL       time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (e *Engine) ensureDefaults() {
	if e.Clock == nil {
		e.Clock = func() time.Time { return time.Now().UTC() }
	}
	if e.JobTTL <= 0 {
		e.JobTTL = jobstore.DefaultTTL
	}
	if e.MaxRetries < 0 {
		e.MaxRetries = 0
	}
	if e.RetryBackoff <= 0 {
		e.RetryBackoff = 250 * time.Millisecond
	}
}

// RunSync is the collapsed state machine: no job record, no externally
// visible running state. The envelope or classified error goes straight back
// to the caller.
func (e *Engine) RunSync(ctx context.Context, operation string, params analytics.Params) (analytics.ResultEnvelope, error) {
	e.ensureDefaults()
	return e.execute(ctx, operation, params, "")
}

// Submit creates the job record with status submitted. Delivery to an
// execution driver is the caller's next step; validation happens at execution
// time, so a bad submission still yields a pollable record that ends in
// failed.
func (e *Engine) Submit(ctx context.Context, operation string, params analytics.Params) (jobstore.AnalyticsJob, error) {
	e.ensureDefaults()

	now := e.Clock()
	job := jobstore.AnalyticsJob{
		JobID:       uuid.NewString(),
		Operation:   operation,
		Parameters:  params,
		Status:      jobstore.StatusSubmitted,
		SubmittedAt: now,
		ExpireAt:    now.Add(e.JobTTL),
	}

	if err := e.Jobs.Create(ctx, job); err != nil {
		return jobstore.AnalyticsJob{}, fmt.Errorf("create job record: %w", err)
	}

	observability.IncrementJobSubmitted()
	return job, nil
}

// RunJob drives one persisted job to a terminal status. Redelivery of an
// already-terminal job is a no-op; a stale transition means another attempt
// won the race and this one backs off without side effects.
func (e *Engine) RunJob(ctx context.Context, jobID string) error {
	e.ensureDefaults()

	job, err := e.Jobs.Get(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status.Terminal() {
		return nil
	}

	pickedUp := e.Clock()
	if job.Status == jobstore.StatusSubmitted {
		err := e.Jobs.UpdateStatus(ctx, jobID, jobstore.StatusRunning, jobstore.Fields{StartedAt: &pickedUp})
		if errors.Is(err, jobstore.ErrStaleTransition) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mark job %s running: %w", jobID, err)
		}
	}

	envelope, execErr := e.execute(ctx, job.Operation, job.Parameters, jobID)
	if execErr != nil {
		e.failJob(ctx, jobID, execErr)
		observability.ObserveJobFinished(job.Operation, string(jobstore.StatusFailed), e.Clock().Sub(pickedUp))
		return nil
	}

	completedAt := e.Clock()
	err = e.Jobs.UpdateStatus(ctx, jobID, jobstore.StatusCompleted, jobstore.Fields{
		CompletedAt: &completedAt,
		Result:      &envelope,
	})
	if errors.Is(err, jobstore.ErrStaleTransition) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("mark job %s completed: %w", jobID, err)
	}

	observability.ObserveJobFinished(job.Operation, string(jobstore.StatusCompleted), completedAt.Sub(pickedUp))
	e.notifyFinished(ctx, jobID)
	return nil
}

// execute runs registry invocation and result routing with the bounded retry
// loop for the retryable error class. Terminal-class errors return on the
// first occurrence.
func (e *Engine) execute(ctx context.Context, operation string, params analytics.Params, jobID string) (analytics.ResultEnvelope, error) {
	var lastErr error
	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		if attempt > 0 {
			observability.IncrementJobRetry()
			if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
				return analytics.ResultEnvelope{}, analytics.WrapError(analytics.KindExecution, "execution canceled", err)
			}
		}

		queryStart := e.Clock()
		rowSet, err := e.Registry.Invoke(ctx, operation, params)
		if err != nil {
			if analytics.KindOf(err) == analytics.KindForbiddenQuery {
				observability.IncrementSandboxRejection()
			}
			if !analytics.Retryable(err) {
				return analytics.ResultEnvelope{}, err
			}
			lastErr = err
			continue
		}
		observability.ObserveQueryDuration(operation, e.Clock().Sub(queryStart))

		envelope, err := e.Router.Route(ctx, rowSet, operation, jobID)
		if err != nil {
			if !analytics.Retryable(err) {
				return analytics.ResultEnvelope{}, err
			}
			lastErr = err
			continue
		}
		if envelope.Blob != nil {
			observability.IncrementResultSpilled()
		}
		return envelope, nil
	}
	return analytics.ResultEnvelope{}, lastErr
}

func (e *Engine) backoff(attempt int) time.Duration {
	delay := e.RetryBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (e *Engine) sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// failJob writes the terminal failed status. A stale transition here means a
// racing attempt already finished the job; nothing further happens.
func (e *Engine) failJob(ctx context.Context, jobID string, cause error) {
	completedAt := e.Clock()
	info := &jobstore.ErrorInfo{
		Type:        string(analytics.KindOf(cause)),
		Message:     cause.Error(),
		Suggestions: analytics.Suggestions(cause),
	}

	err := e.Jobs.UpdateStatus(ctx, jobID, jobstore.StatusFailed, jobstore.Fields{
		CompletedAt: &completedAt,
		Error:       info,
	})
	if errors.Is(err, jobstore.ErrStaleTransition) {
		return
	}
	if err != nil {
		if e.Logger != nil {
			e.Logger.ErrorContext(ctx, "failed to record job failure",
				slog.String("job_id", jobID),
				slog.Any("error", err),
			)
		}
		return
	}
	e.notifyFinished(ctx, jobID)
}

func (e *Engine) notifyFinished(ctx context.Context, jobID string) {
	if e.Notifier == nil {
		return
	}
	job, err := e.Jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	e.Notifier.JobFinished(ctx, job)
}
