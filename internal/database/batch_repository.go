package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/leadharvest/internal/domain"
)

// batchSelectList is the column list for SELECT/RETURNING on search_batches.
const batchSelectList = `id, name, description, status, total_jobs, completed_jobs,
		failed_jobs, delay_seconds, created_at, started_at, completed_at`

// jobSelectList is the column list for SELECT/RETURNING on search_jobs.
const jobSelectList = `id, batch_id, query, location, pages, status, result_count,
		search_id, error_message, created_at, executed_at`

// BatchRepository manages search batches and their jobs in PostgreSQL.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateBatch inserts a new batch and fills in its generated ID.
func (r *BatchRepository) CreateBatch(ctx context.Context, batch *domain.SearchBatch) error {
	batch.ID = uuid.New().String()
	query := `
		INSERT INTO search_batches (id, name, description, status, delay_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`

	if _, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.Name, batch.Description, batch.Status, batch.DelaySeconds); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// AddJobs inserts jobs for a batch and bumps the batch's total_jobs counter.
func (r *BatchRepository) AddJobs(ctx context.Context, batchID string, jobs []domain.SearchJob) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add jobs: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	insert := `
		INSERT INTO search_jobs (id, batch_id, query, location, pages, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	for i := range jobs {
		jobs[i].ID = uuid.New().String()
		jobs[i].BatchID = batchID
		jobs[i].Status = domain.JobStatusPending
		if _, err := tx.ExecContext(ctx, insert,
			jobs[i].ID, batchID, jobs[i].Query, jobs[i].Location, jobs[i].Pages,
			jobs[i].Status); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE search_batches SET total_jobs = total_jobs + $2 WHERE id = $1`,
		batchID, len(jobs)); err != nil {
		return fmt.Errorf("update total_jobs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add jobs: %w", err)
	}
	return nil
}

// GetBatch retrieves a single batch by ID.
func (r *BatchRepository) GetBatch(ctx context.Context, id string) (*domain.SearchBatch, error) {
	var batch domain.SearchBatch
	err := r.db.GetContext(ctx, &batch,
		`SELECT `+batchSelectList+` FROM search_batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &batch, nil
}

// ListBatches returns batches ordered newest first.
func (r *BatchRepository) ListBatches(ctx context.Context, limit int) ([]domain.SearchBatch, error) {
	batches := make([]domain.SearchBatch, 0, limit)
	err := r.db.SelectContext(ctx, &batches,
		`SELECT `+batchSelectList+` FROM search_batches ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// RunningBatches returns all batches in running state, oldest first. The
// scheduler iterates them in this order within one pass.
func (r *BatchRepository) RunningBatches(ctx context.Context) ([]domain.SearchBatch, error) {
	var batches []domain.SearchBatch
	err := r.db.SelectContext(ctx, &batches,
		`SELECT `+batchSelectList+` FROM search_batches
		 WHERE status = 'running' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("running batches: %w", err)
	}
	return batches, nil
}

// ClaimOldestPendingJob atomically claims the oldest pending job of a batch,
// transitioning it to running. The claim is conditioned on the job still
// being pending, so overlapping scheduler passes cannot claim the same job.
// executed_at is stamped at claim time; stale-job recovery measures from it.
// Returns domain.ErrNotFound when the batch has no pending jobs.
func (r *BatchRepository) ClaimOldestPendingJob(ctx context.Context, batchID string) (*domain.SearchJob, error) {
	query := `
		UPDATE search_jobs
		SET status = 'running', executed_at = NOW()
		WHERE id = (
			SELECT id FROM search_jobs
			WHERE batch_id = $1 AND status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobSelectList

	var job domain.SearchJob
	err := r.db.GetContext(ctx, &job, query, batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending job: %w", err)
	}
	return &job, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row
// was affected.
func (r *BatchRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, rowsErr := result.RowsAffected()
	if rowsErr != nil {
		return fmt.Errorf("get affected rows: %w", rowsErr)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CompleteJob marks a job completed with its result count and owning
// search session, and increments the batch's completed_jobs counter.
func (r *BatchRepository) CompleteJob(ctx context.Context, job *domain.SearchJob, searchID string, resultCount int) error {
	query := `
		UPDATE search_jobs
		SET status = 'completed',
		    result_count = $2,
		    search_id = $3,
		    executed_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, job.ID, resultCount, searchID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("complete job: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE search_batches SET completed_jobs = completed_jobs + 1 WHERE id = $1`,
		job.BatchID); err != nil {
		return fmt.Errorf("increment completed_jobs: %w", err)
	}
	return nil
}

// FailJob marks a job failed with an error message and increments the
// batch's failed_jobs counter. A failed job is terminal unless externally
// reset to pending.
func (r *BatchRepository) FailJob(ctx context.Context, job *domain.SearchJob, errorMsg string) error {
	query := `
		UPDATE search_jobs
		SET status = 'failed',
		    error_message = $2,
		    executed_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, job.ID, errorMsg); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("fail job: %w", err)
	}

	if _, err := r.db.ExecContext(ctx,
		`UPDATE search_batches SET failed_jobs = failed_jobs + 1 WHERE id = $1`,
		job.BatchID); err != nil {
		return fmt.Errorf("increment failed_jobs: %w", err)
	}
	return nil
}

// CompleteBatch marks a batch completed with completed_at set.
func (r *BatchRepository) CompleteBatch(ctx context.Context, batchID string) error {
	query := `
		UPDATE search_batches
		SET status = 'completed', completed_at = NOW()
		WHERE id = $1 AND status = 'running'`
	if err := r.execExpectOneRow(ctx, query, batchID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("complete batch: %w", err)
	}
	return nil
}

// SetBatchStatus transitions a batch between the externally driven states
// (start, pause, resume). started_at is set on the first transition
// into running.
func (r *BatchRepository) SetBatchStatus(ctx context.Context, batchID string, status domain.BatchStatus) error {
	query := `
		UPDATE search_batches
		SET status = $2,
		    started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN NOW() ELSE started_at END
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, batchID, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set batch status: %w", err)
	}
	return nil
}

// ResetStaleRunningJobs resets jobs stuck in running longer than olderThan
// back to pending. Staleness is measured from the claim timestamp, not row
// creation, so a job claimed moments ago with its dispatch still in flight
// is never reclaimed. Exposed as an administrative operation; the scheduler
// never reclaims running jobs on its own.
func (r *BatchRepository) ResetStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE search_jobs
		SET status = 'pending', executed_at = NULL
		WHERE status = 'running'
		  AND executed_at < NOW() - $1::interval`

	result, err := r.db.ExecContext(ctx, query, olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	return result.RowsAffected()
}

// QueueStats holds batch queue statistics for monitoring.
type QueueStats struct {
	PendingBatches   int64 `db:"pending_batches"   json:"pending_batches"`
	RunningBatches   int64 `db:"running_batches"   json:"running_batches"`
	CompletedBatches int64 `db:"completed_batches" json:"completed_batches"`
	PendingJobs      int64 `db:"pending_jobs"      json:"pending_jobs"`
	RunningJobs      int64 `db:"running_jobs"      json:"running_jobs"`
	CompletedJobs    int64 `db:"completed_jobs"    json:"completed_jobs"`
	FailedJobs       int64 `db:"failed_jobs"       json:"failed_jobs"`
}

// Stats returns queue-wide batch and job counts.
func (r *BatchRepository) Stats(ctx context.Context) (*QueueStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM search_batches WHERE status = 'pending')   AS pending_batches,
			(SELECT COUNT(*) FROM search_batches WHERE status = 'running')   AS running_batches,
			(SELECT COUNT(*) FROM search_batches WHERE status = 'completed') AS completed_batches,
			(SELECT COUNT(*) FROM search_jobs WHERE status = 'pending')      AS pending_jobs,
			(SELECT COUNT(*) FROM search_jobs WHERE status = 'running')      AS running_jobs,
			(SELECT COUNT(*) FROM search_jobs WHERE status = 'completed')    AS completed_jobs,
			(SELECT COUNT(*) FROM search_jobs WHERE status = 'failed')       AS failed_jobs`

	var stats QueueStats
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &stats, nil
}

// Ping verifies database connectivity.
func (r *BatchRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
