package validation

import (
	"context"
	"encoding/json"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/truelist"
)

// QueueStore is the persistence surface the queue worker needs.
type QueueStore interface {
	ClaimPendingItems(ctx context.Context, limit int) ([]domain.ValidationQueueItem, error)
	MarkItemCompleted(ctx context.Context, itemID string) error
	MarkItemFailed(ctx context.Context, itemID, errorMsg string) error
	InsertResult(ctx context.Context, result *domain.ValidationResult) error
	IncrementVerdictCount(ctx context.Context, listID string, verdict domain.Verdict) error
}

// SingleVerifier checks one email address at the provider.
type SingleVerifier interface {
	VerifySingle(ctx context.Context, email string) (*truelist.SingleResult, error)
}

// QueueWorker drains the per-email validation queue: each pass claims a
// bounded batch of pending items and verifies them concurrently, one
// provider call per item.
type QueueWorker struct {
	store     QueueStore
	verifier  SingleVerifier
	batchSize int
	tracer    trace.Tracer
	logger    logger.Logger
}

// NewQueueWorker creates a QueueWorker processing up to batchSize items
// per pass.
func NewQueueWorker(store QueueStore, verifier SingleVerifier, batchSize int, log logger.Logger) *QueueWorker {
	return &QueueWorker{
		store:     store,
		verifier:  verifier,
		batchSize: batchSize,
		tracer:    otel.Tracer("validation-queue"),
		logger:    log,
	}
}

// PassSummary reports the outcome of one queue pass.
type PassSummary struct {
	Claimed   int `json:"claimed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ProcessPending runs one queue pass: claim a bounded batch of pending
// items, then verify them concurrently. The claim transitions items out of
// pending before any provider call, so overlapping passes (the worker
// ticker and the manual API trigger share one database) never process the
// same item twice. Item failures are isolated: a failed item is marked
// failed with its error and the rest of the batch proceeds. List counters
// are bumped with single-row atomic increments, so items of the same list
// can be processed in parallel without losing counts.
func (w *QueueWorker) ProcessPending(ctx context.Context) (*PassSummary, error) {
	ctx, span := w.tracer.Start(ctx, "validation_queue.process_pending")
	defer span.End()

	items, err := w.store.ClaimPendingItems(ctx, w.batchSize)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &PassSummary{}, nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failed    int
	)

	for i := range items {
		item := items[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.processItem(ctx, item); err != nil {
				w.logger.Warn("queue item failed",
					logger.String("item_id", item.ID),
					logger.String("email", item.Email),
					logger.Error(err))
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
		}()
	}
	wg.Wait()

	w.logger.Info("validation queue pass finished",
		logger.Int("claimed", len(items)),
		logger.Int("succeeded", succeeded),
		logger.Int("failed", failed))

	span.SetAttributes(
		attribute.Int("claimed", len(items)),
		attribute.Int("succeeded", succeeded),
		attribute.Int("failed", failed))

	return &PassSummary{Claimed: len(items), Succeeded: succeeded, Failed: failed}, nil
}

func (w *QueueWorker) processItem(ctx context.Context, item domain.ValidationQueueItem) error {
	single, err := w.verifier.VerifySingle(ctx, item.Email)
	if err != nil {
		if markErr := w.store.MarkItemFailed(ctx, item.ID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark queue item failed",
				logger.String("item_id", item.ID),
				logger.Error(markErr))
		}
		return err
	}

	verdict := single.Check().Classify()
	result := &domain.ValidationResult{
		ValidationListID: item.ValidationListID,
		Email:            item.Email,
		Result:           verdict,
		FormatValid:      single.FormatValid,
		DomainValid:      single.DomainValid,
		SMTPValid:        single.SMTPValid,
		CatchAll:         single.CatchAll,
		Disposable:       single.Disposable,
		FreeEmail:        single.FreeEmail,
	}
	if raw, marshalErr := json.Marshal(single); marshalErr == nil {
		payload := string(raw)
		result.FullResponse = &payload
	}
	if err := w.store.InsertResult(ctx, result); err != nil {
		if markErr := w.store.MarkItemFailed(ctx, item.ID, err.Error()); markErr != nil {
			w.logger.Error("failed to mark queue item failed",
				logger.String("item_id", item.ID),
				logger.Error(markErr))
		}
		return err
	}

	if err := w.store.MarkItemCompleted(ctx, item.ID); err != nil {
		return err
	}
	if err := w.store.IncrementVerdictCount(ctx, item.ValidationListID, verdict); err != nil {
		return err
	}
	return nil
}
