// Package redis implements the job record store and the pending-job queue on
// a Redis instance. Records expire through Redis TTL; status transitions use
// optimistic WATCH transactions so racing orchestrator attempts cannot move a
// job backward.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reportrunner/reportrunner/internal/jobstore"
)

const (
	pendingQueueKey = "jobs:pending"
	// casAttempts bounds the optimistic retry loop when the watched record
	// changes under us.
	casAttempts = 5
)

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

type Store struct {
	client *redis.Client
	clock  func() time.Time
}

func New(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewWithClient(redis.NewClient(opts)), nil
}

func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, clock: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Create(ctx context.Context, job jobstore.AnalyticsJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	ttl := job.ExpireAt.Sub(s.clock())
	if ttl <= 0 {
		return fmt.Errorf("job %s: expire_at is in the past", job.JobID)
	}

	encoded, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.JobID, err)
	}

	created, err := s.client.SetNX(ctx, jobKey(job.JobID), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.JobID, err)
	}
	if !created {
		return jobstore.ErrConflict
	}
	return nil
}

func (s *Store) Get(ctx context.Context, jobID string) (jobstore.AnalyticsJob, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return jobstore.AnalyticsJob{}, jobstore.ErrNotFound
	}
	if err != nil {
		return jobstore.AnalyticsJob{}, fmt.Errorf("get job %s: %w", jobID, err)
	}

	var job jobstore.AnalyticsJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return jobstore.AnalyticsJob{}, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return job, nil
}

// UpdateStatus is compare-and-set on the record's status. The record TTL is
// preserved (KeepTTL) so ExpireAt stays authoritative.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, newStatus jobstore.Status, fields jobstore.Fields) error {
	key := jobKey(jobID)

	transact := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return jobstore.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get job %s: %w", jobID, err)
		}

		var job jobstore.AnalyticsJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return fmt.Errorf("decode job %s: %w", jobID, err)
		}

		changed, err := jobstore.ApplyTransition(&job, newStatus, fields)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		encoded, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", jobID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, redis.KeepTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		err := s.client.Watch(ctx, transact, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too many concurrent writers", jobID)
}

// ListByStatus walks the job keyspace with SCAN. Used by the worker watchdog
// only; polling callers go through Get.
func (s *Store) ListByStatus(ctx context.Context, status jobstore.Status) ([]jobstore.AnalyticsJob, error) {
	var jobs []jobstore.AnalyticsJob

	iter := s.client.Scan(ctx, 0, jobKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		raw, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get job %s: %w", iter.Val(), err)
		}

		var job jobstore.AnalyticsJob
		if err := json.Unmarshal(raw, &job); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", iter.Val(), err)
		}
		if job.Status == status {
			jobs = append(jobs, job)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return jobs, nil
}

func (s *Store) Enqueue(ctx context.Context, jobID string) error {
	if err := s.client.LPush(ctx, pendingQueueKey, jobID).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next pending job id.
func (s *Store) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	values, err := s.client.BRPop(ctx, timeout, pendingQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", jobstore.ErrNoPendingJobs
	}
	if err != nil {
		return "", fmt.Errorf("dequeue pending job: %w", err)
	}
	if len(values) != 2 {
		return "", fmt.Errorf("dequeue pending job: unexpected reply length %d", len(values))
	}
	return values[1], nil
}
