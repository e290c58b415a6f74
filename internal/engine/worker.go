package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/jobstore"
)

// Worker is the durable workflow driver: it pulls pending job ids off the
// queue and drives each through the engine. A watchdog sweep force-fails jobs
// stuck in running past the configured age, since the engine itself never
// cancels mid-flight work.
type Worker struct {
	Engine  *Engine
	Queue   jobstore.Queue
	Scanner jobstore.Scanner
	Logger  *slog.Logger
	Clock   func() time.Time

	DequeueTimeout   time.Duration
	WatchdogInterval time.Duration
	StuckAfter       time.Duration
}

func (w *Worker) ensureDefaults() {
	if w.Clock == nil {
		w.Clock = func() time.Time { return time.Now().UTC() }
	}
	if w.DequeueTimeout <= 0 {
		w.DequeueTimeout = 2 * time.Second
	}
	if w.WatchdogInterval <= 0 {
		w.WatchdogInterval = time.Minute
	}
	if w.StuckAfter <= 0 {
		w.StuckAfter = 15 * time.Minute
	}
}

func (w *Worker) Drive(ctx context.Context, jobID string) error {
	return w.Queue.Enqueue(ctx, jobID)
}

// Run consumes the pending queue until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.ensureDefaults()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		jobID, err := w.Queue.Dequeue(ctx, w.DequeueTimeout)
		if errors.Is(err, jobstore.ErrNoPendingJobs) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if w.Logger != nil {
				w.Logger.ErrorContext(ctx, "dequeue failed", slog.Any("error", err))
			}
			continue
		}

		if err := w.Engine.RunJob(ctx, jobID); err != nil {
			if w.Logger != nil {
				w.Logger.ErrorContext(ctx, "job run failed",
					slog.String("job_id", jobID),
					slog.Any("error", err),
				)
			}
		}
	}
}

// RunWatchdog sweeps for stuck jobs on a ticker until ctx is canceled.
func (w *Worker) RunWatchdog(ctx context.Context) error {
	w.ensureDefaults()

	ticker := time.NewTicker(w.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := w.SweepOnce(ctx); err != nil {
			if w.Logger != nil {
				w.Logger.ErrorContext(ctx, "watchdog sweep failed", slog.Any("error", err))
			}
		}
	}
}

// SweepOnce force-fails every non-terminal job whose execution started more
// than StuckAfter ago. Submitted jobs are included so a record whose enqueue
// was lost does not dangle until TTL expiry. The conditional update keeps
// this safe against a slow attempt finishing concurrently: whichever terminal
// write lands first wins.
func (w *Worker) SweepOnce(ctx context.Context) error {
	w.ensureDefaults()
	if w.Scanner == nil {
		return nil
	}

	var stale []jobstore.AnalyticsJob
	for _, status := range []jobstore.Status{jobstore.StatusRunning, jobstore.StatusSubmitted} {
		jobs, err := w.Scanner.ListByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("list %s jobs: %w", status, err)
		}
		stale = append(stale, jobs...)
	}

	now := w.Clock()
	for _, job := range stale {
		startedAt := job.SubmittedAt
		if job.StartedAt != nil {
			startedAt = *job.StartedAt
		}
		if now.Sub(startedAt) < w.StuckAfter {
			continue
		}

		completedAt := now
		err := w.Engine.Jobs.UpdateStatus(ctx, job.JobID, jobstore.StatusFailed, jobstore.Fields{
			CompletedAt: &completedAt,
			Error: &jobstore.ErrorInfo{
				Type:    string(analytics.KindExecution),
				Message: fmt.Sprintf("job exceeded the execution deadline (started %s)", startedAt.Format(time.RFC3339)),
				Suggestions: []string{
					"reduce the timeframe or group cardinality and resubmit",
				},
			},
		})
		if err != nil && !errors.Is(err, jobstore.ErrStaleTransition) {
			return fmt.Errorf("fail stuck job %s: %w", job.JobID, err)
		}
		if err == nil && w.Logger != nil {
			w.Logger.WarnContext(ctx, "force-failed stuck job",
				slog.String("job_id", job.JobID),
				slog.String("operation", job.Operation),
			)
		}
	}
	return nil
}
