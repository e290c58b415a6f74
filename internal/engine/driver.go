package engine

import (
	"context"
	"log/slog"

	"github.com/reportrunner/reportrunner/internal/jobstore"
)

// WorkflowDriver abstracts who advances a submitted job: the in-process
// driver for quick operations, or the worker loop backed by the pending
// queue for durable execution. The state machine itself lives in Engine and
// is written once.
type WorkflowDriver interface {
	Drive(ctx context.Context, jobID string) error
}

// SyncDriver runs the job immediately on the caller's goroutine.
type SyncDriver struct {
	Engine *Engine
}

func (d *SyncDriver) Drive(ctx context.Context, jobID string) error {
	return d.Engine.RunJob(ctx, jobID)
}

// QueueDriver hands the job id to the pending queue for a worker process to
// pick up. Enqueue failures surface to the submitter, whose record then ends
// failed via the watchdog rather than dangling.
type QueueDriver struct {
	Queue jobstore.Queue
}

func (d *QueueDriver) Drive(ctx context.Context, jobID string) error {
	return d.Queue.Enqueue(ctx, jobID)
}

// AsyncDriver runs the job on its own goroutine, detached from the request
// context. It is the single-process stand-in for the queue-backed worker:
// submission returns immediately and the watchdog still covers crashes.
type AsyncDriver struct {
	Engine *Engine
	Logger *slog.Logger
}

func (d *AsyncDriver) Drive(_ context.Context, jobID string) error {
	go func() {
		if err := d.Engine.RunJob(context.Background(), jobID); err != nil && d.Logger != nil {
			d.Logger.Error("async job execution failed",
				slog.String("job_id", jobID),
				slog.Any("error", err),
			)
		}
	}()
	return nil
}
