package driven

import (
	"context"
	"time"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

// JobQueue is a durable queue of ingestion jobs.
type JobQueue interface {
	// Enqueue adds a job for the path unless one is already queued or
	// active for it. Returns the job and whether it was newly created.
	Enqueue(ctx context.Context, job *domain.IngestJob) (*domain.IngestJob, bool, error)

	// Claim leases the oldest runnable queued job, marking it active
	// and incrementing its attempt count. Returns domain.ErrNotFound
	// when nothing is runnable at now.
	Claim(ctx context.Context, now time.Time, lease time.Duration) (*domain.IngestJob, error)

	// Heartbeat extends the lease on an active job.
	Heartbeat(ctx context.Context, jobID string, until time.Time) error

	// Complete marks the job completed and records its chunk count.
	Complete(ctx context.Context, jobID string, chunkCount int) error

	// Fail records a failed attempt. Retryable failures with attempts
	// remaining go back to queued with a backoff-delayed run time;
	// otherwise the job goes terminal.
	Fail(ctx context.Context, jobID string, jobErr error, retryable bool, backoffBase time.Duration) error

	// RequeueStalled returns active jobs whose lease expired before now
	// to the queued state, and reports how many were swept.
	RequeueStalled(ctx context.Context, now time.Time) (int, error)

	// Counts summarises the queue by state.
	Counts(ctx context.Context) (domain.QueueCounts, error)

	// List returns jobs in the given states, newest first, up to limit.
	// An empty states slice means all states.
	List(ctx context.Context, states []domain.JobState, limit int) ([]*domain.IngestJob, error)

	// RetryTerminal re-queues failed jobs with a fresh attempt budget
	// and reports how many were re-queued.
	RetryTerminal(ctx context.Context) (int, error)

	// ResetTerminal deletes completed and failed jobs and reports how
	// many were removed.
	ResetTerminal(ctx context.Context) (int, error)
}
