// Package scheduler advances the search batch queue, one job per running
// batch per pass.
package scheduler

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/leadharvest/internal/dispatch"
	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

// BatchStore is the persistence surface the scheduler needs.
type BatchStore interface {
	RunningBatches(ctx context.Context) ([]domain.SearchBatch, error)
	ClaimOldestPendingJob(ctx context.Context, batchID string) (*domain.SearchJob, error)
	CompleteJob(ctx context.Context, job *domain.SearchJob, searchID string, resultCount int) error
	FailJob(ctx context.Context, job *domain.SearchJob, errorMsg string) error
	CompleteBatch(ctx context.Context, batchID string) error
}

// SearchDispatcher executes one search job's query.
type SearchDispatcher interface {
	Search(ctx context.Context, query, location string, pageCount int) (*dispatch.Result, error)
}

// Scheduler processes all running batches in a single pass, advancing at
// most one pending job per batch. It performs no internal sleeping: the
// configured inter-job delay of a batch is realized by the caller invoking
// Advance on a cadence at least that long. Each pass is idempotent-per-call
// and safe to invoke on any cadence.
type Scheduler struct {
	store      BatchStore
	dispatcher SearchDispatcher
	tracer     trace.Tracer
	logger     logger.Logger
}

// New creates a Scheduler.
func New(store BatchStore, dispatcher SearchDispatcher, log logger.Logger) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		tracer:     otel.Tracer("batch-scheduler"),
		logger:     log,
	}
}

// PassSummary reports what one Advance call did.
type PassSummary struct {
	BatchesSeen      int `json:"batches_seen"`
	JobsCompleted    int `json:"jobs_completed"`
	JobsFailed       int `json:"jobs_failed"`
	BatchesCompleted int `json:"batches_completed"`
}

// Advance runs one scheduler pass: fetch all running batches oldest first,
// claim and execute the oldest pending job of each, and complete batches
// with no pending jobs left. Batches are processed sequentially, bounding
// one pass to one job dispatch per running batch. A failed job is terminal
// within this pass; no retry is attempted.
func (s *Scheduler) Advance(ctx context.Context) (*PassSummary, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.advance")
	defer span.End()

	batches, err := s.store.RunningBatches(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch running batches: %w", err)
	}

	summary := &PassSummary{BatchesSeen: len(batches)}
	for i := range batches {
		if err := s.advanceBatch(ctx, &batches[i], summary); err != nil {
			return summary, err
		}
	}

	s.logger.Info("scheduler pass finished",
		logger.Int("batches_seen", summary.BatchesSeen),
		logger.Int("jobs_completed", summary.JobsCompleted),
		logger.Int("jobs_failed", summary.JobsFailed),
		logger.Int("batches_completed", summary.BatchesCompleted))

	span.SetAttributes(
		attribute.Int("batches_seen", summary.BatchesSeen),
		attribute.Int("jobs_completed", summary.JobsCompleted),
		attribute.Int("jobs_failed", summary.JobsFailed))

	return summary, nil
}

func (s *Scheduler) advanceBatch(ctx context.Context, batch *domain.SearchBatch, summary *PassSummary) error {
	job, err := s.store.ClaimOldestPendingJob(ctx, batch.ID)
	if errors.Is(err, domain.ErrNotFound) {
		if completeErr := s.store.CompleteBatch(ctx, batch.ID); completeErr != nil {
			// Another pass may have completed it between our reads.
			if errors.Is(completeErr, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("complete batch %s: %w", batch.ID, completeErr)
		}
		summary.BatchesCompleted++
		s.logger.Info("batch completed",
			logger.String("batch_id", batch.ID),
			logger.String("name", batch.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim job for batch %s: %w", batch.ID, err)
	}

	s.runJob(ctx, batch, job, summary)
	return nil
}

// runJob dispatches one claimed job and records its terminal state. A
// dispatch failure marks the job failed and moves on; it never aborts
// the pass.
func (s *Scheduler) runJob(ctx context.Context, batch *domain.SearchBatch, job *domain.SearchJob, summary *PassSummary) {
	ctx, span := s.tracer.Start(ctx, "scheduler.run_job",
		trace.WithAttributes(
			attribute.String("batch_id", batch.ID),
			attribute.String("job_id", job.ID),
			attribute.String("query", job.Query)))
	defer span.End()

	result, err := s.dispatcher.Search(ctx, job.Query, job.Location, job.Pages)
	if err != nil {
		summary.JobsFailed++
		s.logger.Error("job dispatch failed",
			logger.String("batch_id", batch.ID),
			logger.String("job_id", job.ID),
			logger.Error(err))
		if failErr := s.store.FailJob(ctx, job, err.Error()); failErr != nil {
			s.logger.Error("failed to mark job failed",
				logger.String("job_id", job.ID),
				logger.Error(failErr))
		}
		return
	}

	if completeErr := s.store.CompleteJob(ctx, job, result.SessionID, len(result.Contacts)); completeErr != nil {
		s.logger.Error("failed to mark job completed",
			logger.String("job_id", job.ID),
			logger.Error(completeErr))
		return
	}

	summary.JobsCompleted++
	s.logger.Info("job completed",
		logger.String("batch_id", batch.ID),
		logger.String("job_id", job.ID),
		logger.String("session_id", result.SessionID),
		logger.Int("contacts", len(result.Contacts)))
}
