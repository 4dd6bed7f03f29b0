package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrag/specrag-cli/internal/adapters/driven/storage/memory"
	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driving"
)

// stubIngestor fails a scripted number of times per path with a
// transient error, then succeeds.
type stubIngestor struct {
	mu           sync.Mutex
	failuresLeft map[string]int
	terminalErr  map[string]error
	calls        map[string]int
}

func newStubIngestor() *stubIngestor {
	return &stubIngestor{
		failuresLeft: make(map[string]int),
		terminalErr:  make(map[string]error),
		calls:        make(map[string]int),
	}
}

func (s *stubIngestor) IngestOne(_ context.Context, storagePath string, _ domain.Kind, _ bool) (*driving.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[storagePath]++
	if err, ok := s.terminalErr[storagePath]; ok {
		return nil, err
	}
	if s.failuresLeft[storagePath] > 0 {
		s.failuresLeft[storagePath]--
		return nil, fmt.Errorf("download: connection reset")
	}
	return &driving.Outcome{Kind: driving.OutcomeIngested, DocumentID: "doc", ChunkCount: 3}, nil
}

func testWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:       2,
		JobTimeout:        time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
		LeaseDuration:     time.Second,
		BackoffBase:       time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		SweepInterval:     10 * time.Millisecond,
	}
}

func enqueueJob(t *testing.T, queue *memory.Queue, path string) *domain.IngestJob {
	t.Helper()
	job, created, err := queue.Enqueue(context.Background(), &domain.IngestJob{
		StoragePath: path,
		Kind:        domain.KindPRD,
		Position:    1,
		Total:       1,
	})
	require.NoError(t, err)
	require.True(t, created)
	return job
}

func findJob(t *testing.T, queue *memory.Queue, id string) *domain.IngestJob {
	t.Helper()
	jobs, err := queue.List(context.Background(), nil, 0)
	require.NoError(t, err)
	for _, j := range jobs {
		if j.ID == id {
			return j
		}
	}
	t.Fatalf("job %s not found", id)
	return nil
}

func TestWorkerCompletesAfterTransientFailures(t *testing.T) {
	queue := memory.NewQueue()
	ingestor := newStubIngestor()
	ingestor.failuresLeft["prds/T/flaky.txt"] = 2
	job := enqueueJob(t, queue, "prds/T/flaky.txt")

	w := NewWorker(queue, ingestor, testWorkerConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.RunUntilDrained(ctx))

	done := findJob(t, queue, job.ID)
	assert.Equal(t, domain.JobCompleted, done.State)
	assert.Equal(t, 3, done.AttemptCount)
	assert.Equal(t, 3, done.ChunkCount)
}

func TestWorkerMarksTerminalAfterMaxAttempts(t *testing.T) {
	queue := memory.NewQueue()
	ingestor := newStubIngestor()
	ingestor.failuresLeft["prds/T/broken.txt"] = 10
	job := enqueueJob(t, queue, "prds/T/broken.txt")

	w := NewWorker(queue, ingestor, testWorkerConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.RunUntilDrained(ctx))

	done := findJob(t, queue, job.ID)
	assert.Equal(t, domain.JobFailed, done.State)
	assert.Equal(t, domain.DefaultMaxAttempts, done.AttemptCount)
	assert.Contains(t, done.LastError, "connection reset")
}

func TestWorkerDoesNotRetryEmptyContent(t *testing.T) {
	queue := memory.NewQueue()
	ingestor := newStubIngestor()
	ingestor.terminalErr["prds/T/empty.txt"] = fmt.Errorf("normalise: %w", domain.ErrEmptyContent)
	job := enqueueJob(t, queue, "prds/T/empty.txt")

	w := NewWorker(queue, ingestor, testWorkerConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.RunUntilDrained(ctx))

	done := findJob(t, queue, job.ID)
	assert.Equal(t, domain.JobFailed, done.State)
	assert.Equal(t, 1, done.AttemptCount)

	ingestor.mu.Lock()
	defer ingestor.mu.Unlock()
	assert.Equal(t, 1, ingestor.calls["prds/T/empty.txt"])
}

func TestWorkerProcessesJobsConcurrently(t *testing.T) {
	queue := memory.NewQueue()
	ingestor := newStubIngestor()
	for i := 0; i < 5; i++ {
		enqueueJob(t, queue, fmt.Sprintf("prds/T/doc%d.txt", i))
	}

	var reported int
	var mu sync.Mutex
	reporter := func(_ *domain.IngestJob, outcome *driving.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported++
	}

	w := NewWorker(queue, ingestor, testWorkerConfig(), reporter)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.RunUntilDrained(ctx))

	counts, err := queue.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, counts.Completed)
	assert.Equal(t, 0, counts.Queued)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, reported)
}

// sweepFailingQueue fails a scripted number of RequeueStalled calls.
type sweepFailingQueue struct {
	*memory.Queue
	mu       sync.Mutex
	failures int
}

func (q *sweepFailingQueue) RequeueStalled(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	fail := q.failures > 0
	if fail {
		q.failures--
	}
	q.mu.Unlock()
	if fail {
		return 0, fmt.Errorf("database is locked")
	}
	return q.Queue.RequeueStalled(ctx, now)
}

func TestWorkerToleratesStartupSweepFailure(t *testing.T) {
	queue := &sweepFailingQueue{Queue: memory.NewQueue(), failures: 1}
	ingestor := newStubIngestor()
	job := enqueueJob(t, queue.Queue, "prds/T/doc.txt")

	w := NewWorker(queue, ingestor, testWorkerConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.RunUntilDrained(ctx))

	done := findJob(t, queue.Queue, job.ID)
	assert.Equal(t, domain.JobCompleted, done.State)
}

func TestWorkerSweepsStalledJobsOnStartup(t *testing.T) {
	queue := memory.NewQueue()
	ingestor := newStubIngestor()
	job := enqueueJob(t, queue, "prds/T/stalled.txt")

	// Simulate a dead worker: claim with an already-short lease and
	// never heartbeat or complete.
	claimed, err := queue.Claim(context.Background(), time.Now().UTC(), time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	time.Sleep(5 * time.Millisecond)

	w := NewWorker(queue, ingestor, testWorkerConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.RunUntilDrained(ctx))

	done := findJob(t, queue, job.ID)
	assert.Equal(t, domain.JobCompleted, done.State)
	// One attempt from the dead claim, one from the real run.
	assert.Equal(t, 2, done.AttemptCount)
}
