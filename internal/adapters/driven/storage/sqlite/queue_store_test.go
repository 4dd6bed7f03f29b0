package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrag/specrag-cli/internal/core/domain"
)

func enqueue(t *testing.T, store *Store, path string) *domain.IngestJob {
	t.Helper()
	job, created, err := store.Enqueue(context.Background(), &domain.IngestJob{
		StoragePath: path,
		Kind:        domain.KindPRD,
		Position:    1,
		Total:       1,
	})
	require.NoError(t, err)
	require.True(t, created)
	return job
}

func TestEnqueueDeduplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := enqueue(t, store, "prds/T/doc.txt")

	again, created, err := store.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "prds/T/doc.txt",
		Kind:        domain.KindPRD,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Queued)
}

func TestEnqueueAllowsNewJobAfterCompletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := enqueue(t, store, "prds/T/doc.txt")
	claimed, err := store.Claim(ctx, time.Now().UTC(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, claimed.ID, 3))

	second, created, err := store.Enqueue(ctx, &domain.IngestJob{
		StoragePath: "prds/T/doc.txt",
		Kind:        domain.KindPRD,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestClaimIncrementsAttemptAndLeases(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, store, "prds/T/doc.txt")

	job, err := store.Claim(ctx, now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, domain.JobActive, job.State)
	assert.Equal(t, 1, job.AttemptCount)
	assert.WithinDuration(t, now.Add(time.Minute), job.LeaseExpiresAt, time.Second)

	// Queue is empty while the job is active.
	_, err = store.Claim(ctx, now, time.Minute)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClaimHonoursRunAtBackoff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, store, "prds/T/doc.txt")

	job, err := store.Claim(ctx, now, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, job.ID, errors.New("timeout"), true, 2*time.Second))

	// Backoff after the first attempt is 2s; not runnable yet.
	_, err = store.Claim(ctx, now, time.Minute)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	retried, err := store.Claim(ctx, now.Add(3*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retried.ID)
	assert.Equal(t, 2, retried.AttemptCount)
}

func TestFailGoesTerminalAfterMaxAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, store, "prds/T/doc.txt")

	for attempt := 1; attempt <= domain.DefaultMaxAttempts; attempt++ {
		job, err := store.Claim(ctx, now.Add(time.Duration(attempt)*time.Minute), time.Minute)
		require.NoError(t, err)
		require.Equal(t, attempt, job.AttemptCount)
		require.NoError(t, store.Fail(ctx, job.ID, errors.New("connection reset"), true, time.Millisecond))
	}

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Failed)

	jobs, err := store.List(ctx, []domain.JobState{domain.JobFailed}, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.DefaultMaxAttempts, jobs[0].AttemptCount)
	assert.Contains(t, jobs[0].LastError, "connection reset")
}

func TestFailNonRetryableIsImmediatelyTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enqueue(t, store, "prds/T/empty.txt")
	job, err := store.Claim(ctx, time.Now().UTC(), time.Minute)
	require.NoError(t, err)

	require.NoError(t, store.Fail(ctx, job.ID, domain.ErrEmptyContent, false, time.Second))

	jobs, err := store.List(ctx, []domain.JobState{domain.JobFailed}, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].AttemptCount)
}

func TestRequeueStalled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, store, "prds/T/doc.txt")
	job, err := store.Claim(ctx, now, 10*time.Millisecond)
	require.NoError(t, err)

	// Lease still valid: nothing swept.
	swept, err := store.RequeueStalled(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	swept, err = store.RequeueStalled(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	reclaimed, err := store.Claim(ctx, now.Add(2*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, reclaimed.ID)
	assert.Equal(t, 2, reclaimed.AttemptCount)
}

func TestHeartbeatExtendsLease(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, store, "prds/T/doc.txt")
	job, err := store.Claim(ctx, now, 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, store.Heartbeat(ctx, job.ID, now.Add(time.Hour)))

	swept, err := store.RequeueStalled(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, swept)
}

func TestHeartbeatFailsForInactiveJob(t *testing.T) {
	store := newTestStore(t)
	job := enqueue(t, store, "prds/T/doc.txt")

	err := store.Heartbeat(context.Background(), job.ID, time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, domain.ErrJobNotClaimable)
}

func TestLateBookkeepingCannotClobberRequeuedJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	enqueue(t, store, "prds/T/doc.txt")
	claimed, err := store.Claim(ctx, now, time.Millisecond)
	require.NoError(t, err)

	// The lease expires and the sweep hands the job back to the queue
	// while the original worker still thinks it owns it.
	swept, err := store.RequeueStalled(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.Equal(t, 1, swept)

	err = store.Complete(ctx, claimed.ID, 4)
	assert.ErrorIs(t, err, domain.ErrJobNotClaimable)

	err = store.Fail(ctx, claimed.ID, errors.New("late failure"), true, time.Second)
	assert.ErrorIs(t, err, domain.ErrJobNotClaimable)

	jobs, err := store.List(ctx, []domain.JobState{domain.JobQueued}, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, claimed.ID, jobs[0].ID)
	assert.Empty(t, jobs[0].LastError)
}

func TestRetryTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enqueue(t, store, "prds/T/doc.txt")
	job, err := store.Claim(ctx, time.Now().UTC(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, job.ID, errors.New("boom"), false, time.Second))

	n, err := store.RetryTerminal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reclaimed, err := store.Claim(ctx, time.Now().UTC().Add(time.Second), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, job.ID, reclaimed.ID)
	assert.Equal(t, 1, reclaimed.AttemptCount)
	assert.Empty(t, reclaimed.LastError)
}

func TestResetTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	enqueue(t, store, "prds/T/done.txt")
	done, err := store.Claim(ctx, time.Now().UTC(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, done.ID, 2))

	enqueue(t, store, "prds/T/pending.txt")

	n, err := store.ResetTerminal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Queued)
	assert.Equal(t, 0, counts.Completed)
}
