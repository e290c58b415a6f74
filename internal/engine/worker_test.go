package engine

import (
	"context"
	"testing"
	"time"

	"github.com/reportrunner/reportrunner/internal/analytics"
	"github.com/reportrunner/reportrunner/internal/jobstore"
)

func seedJob(t *testing.T, store *memJobStore, jobID string, status jobstore.Status, startedAgo time.Duration, now time.Time) {
	t.Helper()
	startedAt := now.Add(-startedAgo)
	job := jobstore.AnalyticsJob{
		JobID:       jobID,
		Operation:   "count_analysis",
		Status:      status,
		SubmittedAt: startedAt,
		ExpireAt:    now.Add(jobstore.DefaultTTL),
	}
	if status == jobstore.StatusRunning {
		job.StartedAt = &startedAt
	}
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("Create(%s) = %v", jobID, err)
	}
}

func TestSweepOnceFailsStuckJobs(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	store := newMemJobStore()
	seedJob(t, store, "stuck-running", jobstore.StatusRunning, time.Hour, now)
	seedJob(t, store, "fresh-running", jobstore.StatusRunning, time.Minute, now)
	seedJob(t, store, "lost-submitted", jobstore.StatusSubmitted, time.Hour, now)

	worker := &Worker{
		Engine:     &Engine{Jobs: store},
		Scanner:    store,
		Clock:      func() time.Time { return now },
		StuckAfter: 15 * time.Minute,
	}
	if err := worker.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce() = %v", err)
	}

	stuck, _ := store.Get(context.Background(), "stuck-running")
	if stuck.Status != jobstore.StatusFailed {
		t.Fatalf("stuck-running status = %s", stuck.Status)
	}
	if stuck.Error == nil || stuck.Error.Type != string(analytics.KindExecution) {
		t.Fatalf("stuck-running error = %+v", stuck.Error)
	}

	fresh, _ := store.Get(context.Background(), "fresh-running")
	if fresh.Status != jobstore.StatusRunning {
		t.Fatalf("fresh-running status = %s", fresh.Status)
	}

	lost, _ := store.Get(context.Background(), "lost-submitted")
	if lost.Status != jobstore.StatusFailed {
		t.Fatalf("lost-submitted status = %s", lost.Status)
	}
}

func TestSweepOnceWithoutScannerIsNoOp(t *testing.T) {
	worker := &Worker{Engine: &Engine{Jobs: newMemJobStore()}}
	if err := worker.SweepOnce(context.Background()); err != nil {
		t.Fatalf("SweepOnce() = %v", err)
	}
}

func TestWorkerRunDrainsQueue(t *testing.T) {
	h := newHarness(t)
	h.register(t, "count_analysis", func(context.Context, analytics.Params) (analytics.RowSet, error) {
		return smallRowSet(), nil
	})

	job, err := h.engine.Submit(context.Background(), "count_analysis", nil)
	if err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	driver := &QueueDriver{Queue: h.store}
	if err := driver.Drive(context.Background(), job.JobID); err != nil {
		t.Fatalf("Drive() = %v", err)
	}

	worker := &Worker{
		Engine:         h.engine,
		Queue:          h.store,
		Scanner:        h.store,
		DequeueTimeout: time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for {
		stored, _ := h.store.Get(context.Background(), job.JobID)
		if stored.Status == jobstore.StatusCompleted {
			break
		}
		select {
		case <-deadline:
			cancel()
			t.Fatalf("job never completed, status = %s", stored.Status)
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
