package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/leadharvest/internal/domain"
)

// listSelectList is the column list for SELECT/RETURNING on validation_lists.
const listSelectList = `id, name, user_id, status, total_emails, processed_emails,
		deliverable_count, undeliverable_count, risky_count, unknown_count,
		external_batch_id, created_at, updated_at`

// resultInsertChunk bounds the size of multi-row result inserts.
const resultInsertChunk = 500

// ValidationRepository manages validation lists, per-email results, and the
// per-email validation queue.
type ValidationRepository struct {
	db *sqlx.DB
}

// NewValidationRepository creates a new repository.
func NewValidationRepository(db *sqlx.DB) *ValidationRepository {
	return &ValidationRepository{db: db}
}

// CreateList inserts a new validation list in processing state.
func (r *ValidationRepository) CreateList(ctx context.Context, list *domain.ValidationList) error {
	list.ID = uuid.New().String()
	query := `
		INSERT INTO validation_lists
			(id, name, user_id, status, total_emails, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())`

	if _, err := r.db.ExecContext(ctx, query,
		list.ID, list.Name, list.UserID, list.Status, list.TotalEmails); err != nil {
		return fmt.Errorf("create validation list: %w", err)
	}
	return nil
}

// GetList retrieves a validation list by ID.
func (r *ValidationRepository) GetList(ctx context.Context, id string) (*domain.ValidationList, error) {
	var list domain.ValidationList
	err := r.db.GetContext(ctx, &list,
		`SELECT `+listSelectList+` FROM validation_lists WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get validation list: %w", err)
	}
	return &list, nil
}

// GetListByExternalBatchID retrieves the list correlated with an external
// verification batch. Used by the webhook reconciliation entry point.
func (r *ValidationRepository) GetListByExternalBatchID(ctx context.Context, externalID string) (*domain.ValidationList, error) {
	var list domain.ValidationList
	err := r.db.GetContext(ctx, &list,
		`SELECT `+listSelectList+` FROM validation_lists WHERE external_batch_id = $1`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list by external batch id: %w", err)
	}
	return &list, nil
}

// ListLists returns validation lists for a user, newest first.
func (r *ValidationRepository) ListLists(ctx context.Context, userID string, limit int) ([]domain.ValidationList, error) {
	lists := make([]domain.ValidationList, 0, limit)
	err := r.db.SelectContext(ctx, &lists,
		`SELECT `+listSelectList+` FROM validation_lists
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list validation lists: %w", err)
	}
	return lists, nil
}

// execExpectOneRow runs an exec and returns domain.ErrNotFound when no row
// was affected.
func (r *ValidationRepository) execExpectOneRow(ctx context.Context, query string, args ...any) error {
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

// ResetList zeroes a previously scaffolded list's counters for
// re-submission and puts it back into processing.
func (r *ValidationRepository) ResetList(ctx context.Context, listID string, totalEmails int) error {
	query := `
		UPDATE validation_lists
		SET status = 'processing',
		    total_emails = $2,
		    processed_emails = 0,
		    deliverable_count = 0,
		    undeliverable_count = 0,
		    risky_count = 0,
		    unknown_count = 0,
		    updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, listID, totalEmails); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("reset validation list: %w", err)
	}
	return nil
}

// SetExternalBatchID stores the provider's batch correlation ID on the list.
func (r *ValidationRepository) SetExternalBatchID(ctx context.Context, listID, externalID string) error {
	query := `
		UPDATE validation_lists
		SET external_batch_id = $2, updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, listID, externalID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("set external batch id: %w", err)
	}
	return nil
}

// MarkListFailed marks a list failed so callers can distinguish "never
// started" from "failed to start".
func (r *ValidationRepository) MarkListFailed(ctx context.Context, listID string) error {
	query := `
		UPDATE validation_lists
		SET status = 'failed', updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, listID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark list failed: %w", err)
	}
	return nil
}

// UpdateProcessedEmails stores the provider's running progress counter.
func (r *ValidationRepository) UpdateProcessedEmails(ctx context.Context, listID string, processed int) error {
	query := `
		UPDATE validation_lists
		SET processed_emails = $2, updated_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, listID, processed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update processed emails: %w", err)
	}
	return nil
}

// CompleteList persists aggregate verdict counts and marks the list
// completed. The transition is conditioned on the list not already being
// completed, which guards repeated reconciliation of the same batch.
func (r *ValidationRepository) CompleteList(ctx context.Context, listID string, counts domain.BucketCounts) error {
	query := `
		UPDATE validation_lists
		SET status = 'completed',
		    processed_emails = total_emails,
		    deliverable_count = $2,
		    undeliverable_count = $3,
		    risky_count = $4,
		    unknown_count = $5,
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'completed'`
	if err := r.execExpectOneRow(ctx, query, listID,
		counts.Deliverable, counts.Undeliverable, counts.Risky, counts.Unknown); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrAlreadyReconciled
		}
		return fmt.Errorf("complete validation list: %w", err)
	}
	return nil
}

// InsertResults inserts per-email results in fixed-size chunks to bound
// statement size.
func (r *ValidationRepository) InsertResults(ctx context.Context, results []domain.ValidationResult) error {
	for start := 0; start < len(results); start += resultInsertChunk {
		end := start + resultInsertChunk
		if end > len(results) {
			end = len(results)
		}
		if err := r.insertResultChunk(ctx, results[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *ValidationRepository) insertResultChunk(ctx context.Context, results []domain.ValidationResult) error {
	if len(results) == 0 {
		return nil
	}

	const cols = 11
	placeholders := make([]string, 0, len(results))
	args := make([]any, 0, len(results)*cols)
	for i := range results {
		results[i].ID = uuid.New().String()
		base := i * cols
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, NOW())",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11))
		args = append(args,
			results[i].ID, results[i].ValidationListID, results[i].Email,
			results[i].Result, results[i].FormatValid, results[i].DomainValid,
			results[i].SMTPValid, results[i].CatchAll, results[i].Disposable,
			results[i].FreeEmail, results[i].Reason)
	}

	query := `
		INSERT INTO validation_results
			(id, validation_list_id, email, result, format_valid, domain_valid,
			 smtp_valid, catch_all, disposable, free_email, reason, created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}

// InsertResult inserts a single per-email result.
func (r *ValidationRepository) InsertResult(ctx context.Context, result *domain.ValidationResult) error {
	result.ID = uuid.New().String()
	query := `
		INSERT INTO validation_results
			(id, validation_list_id, email, result, format_valid, domain_valid,
			 smtp_valid, catch_all, disposable, free_email, reason, full_response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`

	if _, err := r.db.ExecContext(ctx, query,
		result.ID, result.ValidationListID, result.Email, result.Result,
		result.FormatValid, result.DomainValid, result.SMTPValid,
		result.CatchAll, result.Disposable, result.FreeEmail,
		result.Reason, result.FullResponse); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ListResults returns per-email results for a list.
func (r *ValidationRepository) ListResults(ctx context.Context, listID string, limit, offset int) ([]domain.ValidationResult, error) {
	results := make([]domain.ValidationResult, 0, limit)
	err := r.db.SelectContext(ctx, &results,
		`SELECT id, validation_list_id, email, result, format_valid, domain_valid,
		        smtp_valid, catch_all, disposable, free_email, reason, full_response, created_at
		 FROM validation_results
		 WHERE validation_list_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`, listID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	return results, nil
}

// EnqueueItems bulk-creates pending queue items for the per-email
// validation path.
func (r *ValidationRepository) EnqueueItems(ctx context.Context, listID string, emails []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	insert := `
		INSERT INTO validation_queue_items (id, email, validation_list_id, status, created_at)
		VALUES ($1, $2, $3, 'pending', NOW())`

	for _, email := range emails {
		if _, err := tx.ExecContext(ctx, insert, uuid.New().String(), email, listID); err != nil {
			return fmt.Errorf("enqueue item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

// ClaimPendingItems atomically claims up to limit pending queue items,
// oldest first, transitioning them to processing. The claim is conditioned
// on each item still being pending, so overlapping queue passes cannot pick
// up the same item.
func (r *ValidationRepository) ClaimPendingItems(ctx context.Context, limit int) ([]domain.ValidationQueueItem, error) {
	query := `
		UPDATE validation_queue_items
		SET status = 'processing'
		WHERE id IN (
			SELECT id FROM validation_queue_items
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, email, validation_list_id, status, error_message, created_at, processed_at`

	items := make([]domain.ValidationQueueItem, 0, limit)
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("claim pending items: %w", err)
	}
	return items, nil
}

// MarkItemCompleted marks a queue item completed with processed_at set.
func (r *ValidationRepository) MarkItemCompleted(ctx context.Context, itemID string) error {
	query := `
		UPDATE validation_queue_items
		SET status = 'completed', processed_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, itemID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark item completed: %w", err)
	}
	return nil
}

// MarkItemFailed marks a queue item failed with its error message.
func (r *ValidationRepository) MarkItemFailed(ctx context.Context, itemID, errorMsg string) error {
	query := `
		UPDATE validation_queue_items
		SET status = 'failed', error_message = $2, processed_at = NOW()
		WHERE id = $1`
	if err := r.execExpectOneRow(ctx, query, itemID, errorMsg); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("mark item failed: %w", err)
	}
	return nil
}

// IncrementVerdictCount atomically bumps the per-verdict counter and the
// processed counter on a list. Single-row atomic increments keep parallel
// queue-worker items from losing updates.
func (r *ValidationRepository) IncrementVerdictCount(ctx context.Context, listID string, verdict domain.Verdict) error {
	var column string
	switch verdict {
	case domain.VerdictDeliverable:
		column = "deliverable_count"
	case domain.VerdictUndeliverable:
		column = "undeliverable_count"
	case domain.VerdictRisky:
		column = "risky_count"
	case domain.VerdictUnknown:
		column = "unknown_count"
	default:
		return fmt.Errorf("unknown verdict %q", verdict)
	}

	query := fmt.Sprintf(`
		UPDATE validation_lists
		SET %s = %s + 1,
		    processed_emails = processed_emails + 1,
		    updated_at = NOW()
		WHERE id = $1`, column, column)
	if err := r.execExpectOneRow(ctx, query, listID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("increment verdict count: %w", err)
	}
	return nil
}
