package validation

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/truelist"
)

// ReconcileStore is the persistence surface the reconciler needs.
type ReconcileStore interface {
	GetListByExternalBatchID(ctx context.Context, externalID string) (*domain.ValidationList, error)
	UpdateProcessedEmails(ctx context.Context, listID string, processed int) error
	CompleteList(ctx context.Context, listID string, counts domain.BucketCounts) error
	InsertResults(ctx context.Context, results []domain.ValidationResult) error
}

// BatchReader reads batch status and per-email detail from the provider.
type BatchReader interface {
	GetBatch(ctx context.Context, batchID string) (*truelist.Batch, error)
	ListEmails(ctx context.Context, batchID string, page, perPage int) ([]truelist.EmailRecord, error)
	DownloadCSV(ctx context.Context, csvURL string) (string, error)
}

// Reconciler pulls the state of an external verification batch back into
// the local validation list: progress while the batch runs, aggregate
// counts and per-email results once it completes.
type Reconciler struct {
	store    ReconcileStore
	provider BatchReader
	pageSize int
	limiter  *rate.Limiter
	logger   logger.Logger
}

// NewReconciler creates a Reconciler. pageSize bounds detail-page fetches;
// detailRate paces them against the provider's rate limits.
func NewReconciler(store ReconcileStore, provider BatchReader, pageSize int, detailRate rate.Limit, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		provider: provider,
		pageSize: pageSize,
		limiter:  rate.NewLimiter(detailRate, 1),
		logger:   log,
	}
}

// Status describes the outcome of one reconciliation attempt.
type Status struct {
	ListID          string              `json:"list_id"`
	BatchState      string              `json:"batch_state"`
	Completed       bool                `json:"completed"`
	ProcessedEmails int                 `json:"processed_emails"`
	Counts          domain.BucketCounts `json:"counts,omitempty"`
	ResultsStored   int                 `json:"results_stored"`
}

// Reconcile polls the external batch correlated with externalBatchID. While
// the batch is still running only the progress counter is updated. On
// completion it persists aggregate bucket counts, marks the list completed,
// and stores per-email results. Re-reconciling an already completed list
// returns domain.ErrAlreadyReconciled without inserting duplicate results.
func (r *Reconciler) Reconcile(ctx context.Context, externalBatchID string) (*Status, error) {
	list, err := r.store.GetListByExternalBatchID(ctx, externalBatchID)
	if err != nil {
		return nil, fmt.Errorf("find list for batch %s: %w", externalBatchID, err)
	}
	if list.Status == domain.ListStatusCompleted {
		return nil, domain.ErrAlreadyReconciled
	}

	batch, err := r.provider.GetBatch(ctx, externalBatchID)
	if err != nil {
		return nil, fmt.Errorf("poll batch %s: %w", externalBatchID, err)
	}

	if !batch.Completed() {
		if err := r.store.UpdateProcessedEmails(ctx, list.ID, batch.ProcessedCount); err != nil {
			return nil, fmt.Errorf("update progress: %w", err)
		}
		return &Status{
			ListID:          list.ID,
			BatchState:      batch.BatchState,
			ProcessedEmails: batch.ProcessedCount,
		}, nil
	}

	counts := batch.Counts().Buckets()
	if err := r.store.CompleteList(ctx, list.ID, counts); err != nil {
		// A concurrent reconciliation won the race; results are already in.
		return nil, err
	}

	stored, err := r.storeDetailPages(ctx, list.ID, externalBatchID)
	if err != nil {
		return nil, err
	}

	r.logger.Info("validation list reconciled",
		logger.String("list_id", list.ID),
		logger.String("external_batch_id", externalBatchID),
		logger.Int("results_stored", stored))

	return &Status{
		ListID:          list.ID,
		BatchState:      batch.BatchState,
		Completed:       true,
		ProcessedEmails: list.TotalEmails,
		Counts:          counts,
		ResultsStored:   stored,
	}, nil
}

// storeDetailPages walks the provider's paginated per-email results until a
// short page signals the end, inserting each page as it arrives.
func (r *Reconciler) storeDetailPages(ctx context.Context, listID, externalBatchID string) (int, error) {
	stored := 0
	for page := 1; ; page++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return stored, fmt.Errorf("rate limit wait: %w", err)
		}

		records, err := r.provider.ListEmails(ctx, externalBatchID, page, r.pageSize)
		if err != nil {
			return stored, fmt.Errorf("fetch results page %d: %w", page, err)
		}
		if len(records) == 0 {
			return stored, nil
		}

		results := make([]domain.ValidationResult, 0, len(records))
		for _, rec := range records {
			results = append(results, resultFromRecord(listID, rec.Address, rec.EmailState, rec.EmailSubState))
		}
		if err := r.store.InsertResults(ctx, results); err != nil {
			return stored, fmt.Errorf("store results page %d: %w", page, err)
		}
		stored += len(results)

		if len(records) < r.pageSize {
			return stored, nil
		}
	}
}

// resultFromRecord maps a provider state/sub-state pair to a normalized
// per-email result row. The flag columns are derived from the same mapping
// as the verdict, so a syntax failure always reads as format_valid=false
// regardless of which fetch path produced the row.
func resultFromRecord(listID, email, state, subState string) domain.ValidationResult {
	verdict := domain.MapProviderState(state, subState)

	result := domain.ValidationResult{
		ValidationListID: listID,
		Email:            email,
		Result:           verdict,
		FormatValid:      subState != "failed_syntax_check",
		DomainValid:      subState != "failed_syntax_check" && subState != "failed_mx_check",
		SMTPValid:        verdict == domain.VerdictDeliverable,
		CatchAll:         subState == "ok_for_all" || subState == "accept_all",
		Disposable:       subState == "disposable",
	}
	if subState != "" {
		reason := subState
		result.Reason = &reason
	}
	return result
}
