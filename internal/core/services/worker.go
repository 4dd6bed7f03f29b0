package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
	"github.com/specrag/specrag-cli/internal/core/ports/driving"
	"github.com/specrag/specrag-cli/internal/logger"
	"github.com/specrag/specrag-cli/internal/metrics"
	"github.com/specrag/specrag-cli/internal/retry"
)

// WorkerConfig tunes the queue worker.
type WorkerConfig struct {
	// Concurrency is how many jobs run simultaneously. The default of
	// 2 is chosen to stay under the embedding provider's aggregate
	// rate limit, not to maximise throughput.
	Concurrency int

	// JobTimeout bounds one attempt's wall-clock time.
	JobTimeout time.Duration

	// HeartbeatInterval is how often an active job renews its lease.
	HeartbeatInterval time.Duration

	// LeaseDuration is how far ahead each claim and heartbeat extends
	// the lease.
	LeaseDuration time.Duration

	// BackoffBase is the delay before a failed job's second attempt.
	BackoffBase time.Duration

	// PollInterval is the idle wait between claim attempts.
	PollInterval time.Duration

	// SweepInterval is how often expired leases are swept.
	SweepInterval time.Duration
}

// DefaultWorkerConfig returns the standard worker tuning.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:       2,
		JobTimeout:        domain.DefaultJobTimeout,
		HeartbeatInterval: 30 * time.Second,
		LeaseDuration:     domain.DefaultLeaseDuration,
		BackoffBase:       domain.DefaultBackoffBase,
		PollInterval:      time.Second,
		SweepInterval:     30 * time.Second,
	}
}

// Reporter observes finished job attempts, for progress display.
type Reporter func(job *domain.IngestJob, outcome *driving.Outcome, err error)

// Worker claims jobs from the queue and runs them through the
// ingestor with bounded concurrency.
type Worker struct {
	queue    driven.JobQueue
	ingestor driving.Ingestor
	cfg      WorkerConfig
	report   Reporter
}

// NewWorker creates a worker. reporter may be nil.
func NewWorker(queue driven.JobQueue, ingestor driving.Ingestor, cfg WorkerConfig, reporter Reporter) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Worker{queue: queue, ingestor: ingestor, cfg: cfg, report: reporter}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.run(ctx, false)
}

// RunUntilDrained processes jobs until the queue holds no queued or
// active jobs, then returns.
func (w *Worker) RunUntilDrained(ctx context.Context) error {
	return w.run(ctx, true)
}

func (w *Worker) run(ctx context.Context, drain bool) error {
	swept, err := w.queue.RequeueStalled(ctx, time.Now().UTC())
	if err != nil {
		logger.Warn("startup stall sweep failed: %v", err)
	} else if swept > 0 {
		logger.Warn("requeued %d stalled jobs", swept)
		metrics.StalledJobsRequeued.Add(float64(swept))
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go w.sweepLoop(sweepCtx)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		g.Go(func() error {
			return w.claimLoop(gctx, drain)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := w.queue.RequeueStalled(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn("stall sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				logger.Warn("requeued %d stalled jobs", swept)
				metrics.StalledJobsRequeued.Add(float64(swept))
			}
		}
	}
}

func (w *Worker) claimLoop(ctx context.Context, drain bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.queue.Claim(ctx, time.Now().UTC(), w.cfg.LeaseDuration)
		if errors.Is(err, domain.ErrNotFound) {
			if drain {
				counts, cErr := w.queue.Counts(ctx)
				if cErr != nil {
					return cErr
				}
				if counts.Queued == 0 && counts.Active == 0 {
					return nil
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.cfg.PollInterval):
			}
			continue
		}
		if err != nil {
			return err
		}

		w.processJob(ctx, job)
	}
}

// processJob runs one claimed job attempt under the job timeout, with
// a heartbeat keeping the lease alive.
func (w *Worker) processJob(ctx context.Context, job *domain.IngestJob) {
	jobCtx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	stopHeartbeat := w.startHeartbeat(jobCtx, job.ID)
	outcome, err := w.ingestor.IngestOne(jobCtx, job.StoragePath, job.Kind, job.Force)
	stopHeartbeat()

	// Bookkeeping must land even when the attempt timed out or the
	// worker is shutting down.
	bookCtx := context.WithoutCancel(ctx)

	if err != nil {
		retryable := retry.IsTransient(err)
		requeued := retryable && job.AttemptCount < job.MaxAttempts
		if failErr := w.queue.Fail(bookCtx, job.ID, err, retryable, w.cfg.BackoffBase); failErr != nil {
			logger.Warn("recording failure for job %s: %v", job.ID, failErr)
		}
		if requeued {
			logger.Warn("job %s attempt %d/%d failed, will retry: %v",
				job.ID, job.AttemptCount, job.MaxAttempts, err)
			metrics.JobsProcessed.WithLabelValues("retried").Inc()
		} else {
			logger.Warn("job %s failed terminally after %d attempts: %v",
				job.ID, job.AttemptCount, err)
			metrics.JobsProcessed.WithLabelValues("failed").Inc()
		}
		if w.report != nil {
			w.report(job, nil, err)
		}
		return
	}

	if completeErr := w.queue.Complete(bookCtx, job.ID, outcome.ChunkCount); completeErr != nil {
		logger.Warn("recording completion for job %s: %v", job.ID, completeErr)
	}
	metrics.JobsProcessed.WithLabelValues("completed").Inc()
	if w.report != nil {
		w.report(job, outcome, nil)
	}
}

// startHeartbeat renews the job's lease until the returned stop
// function is called or ctx ends.
func (w *Worker) startHeartbeat(ctx context.Context, jobID string) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.cfg.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				until := time.Now().UTC().Add(w.cfg.LeaseDuration)
				if err := w.queue.Heartbeat(hbCtx, jobID, until); err != nil {
					logger.Warn("heartbeat for job %s: %v", jobID, err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
