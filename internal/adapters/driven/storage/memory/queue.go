package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

// Queue is an in-memory JobQueue.
type Queue struct {
	mu   sync.Mutex
	jobs map[string]*domain.IngestJob
}

var _ driven.JobQueue = (*Queue)(nil)

// NewQueue creates an empty in-memory queue.
func NewQueue() *Queue {
	return &Queue{jobs: make(map[string]*domain.IngestJob)}
}

// Enqueue adds a job unless one is already queued or active for the path.
func (q *Queue) Enqueue(_ context.Context, job *domain.IngestJob) (*domain.IngestJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.jobs {
		if existing.StoragePath == job.StoragePath &&
			(existing.State == domain.JobQueued || existing.State == domain.JobActive) {
			copied := *existing
			return &copied, false, nil
		}
	}

	now := time.Now().UTC()
	stored := *job
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.MaxAttempts == 0 {
		stored.MaxAttempts = domain.DefaultMaxAttempts
	}
	stored.State = domain.JobQueued
	stored.AttemptCount = 0
	if stored.RunAt.IsZero() {
		stored.RunAt = now
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	q.jobs[stored.ID] = &stored

	copied := stored
	return &copied, true, nil
}

// Claim leases the oldest runnable queued job.
func (q *Queue) Claim(_ context.Context, now time.Time, lease time.Duration) (*domain.IngestJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var oldest *domain.IngestJob
	for _, j := range q.jobs {
		if j.State != domain.JobQueued || j.RunAt.After(now) {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, fmt.Errorf("no runnable job: %w", domain.ErrNotFound)
	}

	oldest.State = domain.JobActive
	oldest.AttemptCount++
	oldest.LeaseExpiresAt = now.Add(lease)
	oldest.UpdatedAt = now

	copied := *oldest
	return &copied, nil
}

// Heartbeat extends the lease on an active job.
func (q *Queue) Heartbeat(_ context.Context, jobID string, until time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok || j.State != domain.JobActive {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotClaimable)
	}
	j.LeaseExpiresAt = until
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the job completed. Only active jobs complete, so a
// late write cannot clobber a job the stall sweep has re-queued.
func (q *Queue) Complete(_ context.Context, jobID string, chunkCount int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok || j.State != domain.JobActive {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotClaimable)
	}
	j.State = domain.JobCompleted
	j.ChunkCount = chunkCount
	j.LeaseExpiresAt = time.Time{}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail records a failed attempt, re-queueing when retryable with
// attempts remaining.
func (q *Queue) Fail(_ context.Context, jobID string, jobErr error, retryable bool, backoffBase time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	j, ok := q.jobs[jobID]
	if !ok || j.State != domain.JobActive {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotClaimable)
	}

	now := time.Now().UTC()
	j.LastError = jobErr.Error()
	j.LeaseExpiresAt = time.Time{}
	j.UpdatedAt = now

	if retryable && j.AttemptCount < j.MaxAttempts {
		j.State = domain.JobQueued
		j.RunAt = now.Add(domain.BackoffDelay(backoffBase, j.AttemptCount))
	} else {
		j.State = domain.JobFailed
	}
	return nil
}

// RequeueStalled returns expired active jobs to the queue.
func (q *Queue) RequeueStalled(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	swept := 0
	for _, j := range q.jobs {
		if j.State == domain.JobActive && j.LeaseExpiresAt.Before(now) {
			j.State = domain.JobQueued
			j.RunAt = now
			j.LeaseExpiresAt = time.Time{}
			j.UpdatedAt = now
			swept++
		}
	}
	return swept, nil
}

// Counts summarises the queue by state.
func (q *Queue) Counts(context.Context) (domain.QueueCounts, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c domain.QueueCounts
	for _, j := range q.jobs {
		switch j.State {
		case domain.JobQueued:
			c.Queued++
		case domain.JobActive:
			c.Active++
		case domain.JobCompleted:
			c.Completed++
		case domain.JobFailed:
			c.Failed++
		}
	}
	return c, nil
}

// List returns jobs in the given states, newest first.
func (q *Queue) List(_ context.Context, states []domain.JobState, limit int) ([]*domain.IngestJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	wanted := func(s domain.JobState) bool {
		if len(states) == 0 {
			return true
		}
		for _, w := range states {
			if w == s {
				return true
			}
		}
		return false
	}

	var out []*domain.IngestJob
	for _, j := range q.jobs {
		if wanted(j.State) {
			copied := *j
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RetryTerminal re-queues failed jobs with a fresh attempt budget.
func (q *Queue) RetryTerminal(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for _, j := range q.jobs {
		if j.State == domain.JobFailed {
			j.State = domain.JobQueued
			j.AttemptCount = 0
			j.RunAt = now
			j.LastError = ""
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ResetTerminal deletes completed and failed jobs.
func (q *Queue) ResetTerminal(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for id, j := range q.jobs {
		if j.Terminal() {
			delete(q.jobs, id)
			n++
		}
	}
	return n, nil
}
