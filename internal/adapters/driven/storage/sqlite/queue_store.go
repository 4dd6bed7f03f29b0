package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/core/ports/driven"
)

var _ driven.JobQueue = (*Store)(nil)

const jobColumns = `id, storage_path, kind, position, total, force_ingest, state,
	attempt_count, max_attempts, run_at, lease_expires_at, last_error,
	chunk_count, created_at, updated_at`

func scanJob(row rowScanner) (*domain.IngestJob, error) {
	var job domain.IngestJob
	var kind, state string
	var force int
	var runAt, created, updated string
	var lease, lastError sql.NullString

	err := row.Scan(&job.ID, &job.StoragePath, &kind, &job.Position, &job.Total,
		&force, &state, &job.AttemptCount, &job.MaxAttempts, &runAt, &lease,
		&lastError, &job.ChunkCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	job.Kind = domain.Kind(kind)
	job.State = domain.JobState(state)
	job.Force = force != 0
	job.LastError = fromNullString(lastError)
	if job.RunAt, err = parseTime(runAt); err != nil {
		return nil, err
	}
	if job.LeaseExpiresAt, err = parseNullableTime(lease); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &job, nil
}

// Enqueue adds a job unless one is already queued or active for the
// path.
func (s *Store) Enqueue(ctx context.Context, job *domain.IngestJob) (*domain.IngestJob, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM ingest_jobs
		WHERE storage_path = ? AND state IN ('queued', 'active')
		LIMIT 1`, job.StoragePath)
	existing, err := scanJob(row)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ingest_jobs (id, storage_path, kind, position, total, force_ingest,
			state, attempt_count, max_attempts, run_at, lease_expires_at, last_error,
			chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, stored.StoragePath, string(stored.Kind), stored.Position, stored.Total,
		boolToInt(stored.Force), string(stored.State), stored.AttemptCount, stored.MaxAttempts,
		formatTime(stored.RunAt), formatNullableTime(stored.LeaseExpiresAt),
		nullString(stored.LastError), stored.ChunkCount,
		formatTime(stored.CreatedAt), formatTime(stored.UpdatedAt))
	if err != nil {
		return nil, false, fmt.Errorf("enqueueing %s: %w", stored.StoragePath, err)
	}

	return &stored, true, nil
}

// Claim leases the oldest runnable queued job. The select and the
// conditional update run as separate statements; a lost race simply
// moves on to the next candidate.
func (s *Store) Claim(ctx context.Context, now time.Time, lease time.Duration) (*domain.IngestJob, error) {
	for {
		row := s.db.QueryRowContext(ctx, `
			SELECT `+jobColumns+` FROM ingest_jobs
			WHERE state = 'queued' AND run_at <= ?
			ORDER BY created_at
			LIMIT 1`, formatTime(now))
		candidate, err := scanJob(row)
		if err != nil {
			return nil, err
		}

		res, err := s.db.ExecContext(ctx, `
			UPDATE ingest_jobs
			SET state = 'active', attempt_count = attempt_count + 1,
			    lease_expires_at = ?, updated_at = ?
			WHERE id = ? AND state = 'queued'`,
			formatTime(now.Add(lease)), formatTime(now), candidate.ID)
		if err != nil {
			return nil, fmt.Errorf("claiming job %s: %w", candidate.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claiming job %s: %w", candidate.ID, err)
		}
		if affected == 0 {
			// Another worker got there first.
			continue
		}

		candidate.State = domain.JobActive
		candidate.AttemptCount++
		candidate.LeaseExpiresAt = now.Add(lease)
		candidate.UpdatedAt = now
		return candidate, nil
	}
}

// Heartbeat extends the lease on an active job.
func (s *Store) Heartbeat(ctx context.Context, jobID string, until time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_jobs SET lease_expires_at = ?, updated_at = ?
		WHERE id = ? AND state = 'active'`,
		formatTime(until), formatTime(time.Now()), jobID)
	if err != nil {
		return fmt.Errorf("renewing lease for job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renewing lease for job %s: %w", jobID, err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotClaimable)
	}
	return nil
}

// Complete marks the job completed and records its chunk count. Only
// active jobs complete: a late write from a presumed-dead worker must
// not clobber a job the stall sweep has since handed to someone else.
func (s *Store) Complete(ctx context.Context, jobID string, chunkCount int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_jobs
		SET state = 'completed', chunk_count = ?, lease_expires_at = NULL, updated_at = ?
		WHERE id = ? AND state = 'active'`,
		chunkCount, formatTime(time.Now()), jobID)
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing job %s: %w", jobID, err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotClaimable)
	}
	return nil
}

// Fail records a failed attempt, re-queueing with backoff when
// retryable and attempts remain, otherwise going terminal. Like
// Complete, it only touches jobs still active.
func (s *Store) Fail(ctx context.Context, jobID string, jobErr error, retryable bool, backoffBase time.Duration) error {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM ingest_jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	var res sql.Result
	if retryable && job.AttemptCount < job.MaxAttempts {
		runAt := now.Add(domain.BackoffDelay(backoffBase, job.AttemptCount))
		res, err = s.db.ExecContext(ctx, `
			UPDATE ingest_jobs
			SET state = 'queued', run_at = ?, last_error = ?, lease_expires_at = NULL, updated_at = ?
			WHERE id = ? AND state = 'active'`,
			formatTime(runAt), jobErr.Error(), formatTime(now), jobID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE ingest_jobs
			SET state = 'failed', last_error = ?, lease_expires_at = NULL, updated_at = ?
			WHERE id = ? AND state = 'active'`,
			jobErr.Error(), formatTime(now), jobID)
	}
	if err != nil {
		return fmt.Errorf("recording failure for job %s: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording failure for job %s: %w", jobID, err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrJobNotClaimable)
	}
	return nil
}

// RequeueStalled returns active jobs with expired leases to the queue.
func (s *Store) RequeueStalled(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_jobs
		SET state = 'queued', run_at = ?, lease_expires_at = NULL, updated_at = ?
		WHERE state = 'active' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?`,
		formatTime(now), formatTime(now), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("requeueing stalled jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("requeueing stalled jobs: %w", err)
	}
	return int(affected), nil
}

// Counts summarises the queue by state.
func (s *Store) Counts(ctx context.Context) (domain.QueueCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(*) FROM ingest_jobs GROUP BY state`)
	if err != nil {
		return domain.QueueCounts{}, fmt.Errorf("counting jobs: %w", err)
	}
	defer rows.Close()

	var counts domain.QueueCounts
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return domain.QueueCounts{}, fmt.Errorf("scanning job counts: %w", err)
		}
		switch domain.JobState(state) {
		case domain.JobQueued:
			counts.Queued = n
		case domain.JobActive:
			counts.Active = n
		case domain.JobCompleted:
			counts.Completed = n
		case domain.JobFailed:
			counts.Failed = n
		}
	}
	return counts, rows.Err()
}

// List returns jobs in the given states, newest first.
func (s *Store) List(ctx context.Context, states []domain.JobState, limit int) ([]*domain.IngestJob, error) {
	query := `SELECT ` + jobColumns + ` FROM ingest_jobs`
	var args []any
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, st := range states {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// RetryTerminal re-queues failed jobs with a fresh attempt budget.
func (s *Store) RetryTerminal(ctx context.Context) (int, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(ctx, `
		UPDATE ingest_jobs
		SET state = 'queued', attempt_count = 0, run_at = ?, last_error = NULL, updated_at = ?
		WHERE state = 'failed'`, now, now)
	if err != nil {
		return 0, fmt.Errorf("retrying failed jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("retrying failed jobs: %w", err)
	}
	return int(affected), nil
}

// ResetTerminal deletes completed and failed jobs.
func (s *Store) ResetTerminal(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ingest_jobs WHERE state IN ('completed', 'failed')`)
	if err != nil {
		return 0, fmt.Errorf("clearing terminal jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing terminal jobs: %w", err)
	}
	return int(affected), nil
}
