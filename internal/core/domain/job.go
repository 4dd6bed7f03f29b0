package domain

import "time"

// JobState is the lifecycle state of an ingestion job.
type JobState string

const (
	// JobQueued means the job is waiting to be claimed.
	JobQueued JobState = "queued"

	// JobActive means a worker holds a lease on the job.
	JobActive JobState = "active"

	// JobCompleted means the job finished successfully.
	JobCompleted JobState = "completed"

	// JobFailed means the job exhausted its attempts or hit a
	// non-retryable error.
	JobFailed JobState = "failed"
)

const (
	// DefaultMaxAttempts is how many times a job may run before it is
	// marked failed.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase is the delay before the second attempt;
	// later attempts double it.
	DefaultBackoffBase = 2 * time.Second

	// DefaultJobTimeout bounds the wall-clock time of one attempt.
	DefaultJobTimeout = 5 * time.Minute

	// DefaultLeaseDuration is how long a claim stays valid without a
	// heartbeat before the job is considered stalled.
	DefaultLeaseDuration = 90 * time.Second
)

// BackoffDelay returns the delay before re-running a job whose attempt
// number (1-based) just failed. The first retry waits base, the next
// 2*base, then 4*base.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// IngestJob is one unit of ingestion work: a single storage path.
type IngestJob struct {
	// ID is the job's unique identifier.
	ID string

	// StoragePath is the object to ingest.
	StoragePath string

	// Kind is the document kind inferred at scan time.
	Kind Kind

	// Position and Total record the file's place within its scan run,
	// for progress display.
	Position int
	Total    int

	// Force bypasses change detection for this job.
	Force bool

	// State is the current lifecycle state.
	State JobState

	// AttemptCount is how many times the job has been claimed.
	AttemptCount int

	// MaxAttempts bounds AttemptCount before the job goes terminal.
	MaxAttempts int

	// RunAt is the earliest time the job may next be claimed.
	RunAt time.Time

	// LeaseExpiresAt is set while active; a sweep returns jobs whose
	// lease lapsed back to queued.
	LeaseExpiresAt time.Time

	// LastError is the message from the most recent failed attempt.
	LastError string

	// ChunkCount is the number of chunks written, set on completion.
	ChunkCount int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job has reached a final state.
func (j *IngestJob) Terminal() bool {
	return j.State == JobCompleted || j.State == JobFailed
}

// QueueCounts summarises the queue by state.
type QueueCounts struct {
	Queued    int
	Active    int
	Completed int
	Failed    int
}

// Total returns the number of jobs across all states.
func (c QueueCounts) Total() int {
	return c.Queued + c.Active + c.Completed + c.Failed
}
