package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/leadharvest/internal/database"
	"github.com/jonesrussell/leadharvest/internal/domain"
)

func TestValidationRepository_CompleteList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewValidationRepository(db)
	ctx := context.Background()
	counts := domain.BucketCounts{Deliverable: 10, Undeliverable: 4, Risky: 4, Unknown: 2}

	t.Run("persists aggregates and completes", func(t *testing.T) {
		mock.ExpectExec("UPDATE validation_lists").
			WithArgs("list-1", 10, 4, 4, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := repo.CompleteList(ctx, "list-1", counts); err != nil {
			t.Fatalf("CompleteList() error = %v", err)
		}
	})

	t.Run("already completed returns ErrAlreadyReconciled", func(t *testing.T) {
		mock.ExpectExec("UPDATE validation_lists").
			WithArgs("list-1", 10, 4, 4, 2).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.CompleteList(ctx, "list-1", counts)
		if !errors.Is(err, domain.ErrAlreadyReconciled) {
			t.Errorf("CompleteList() error = %v, want ErrAlreadyReconciled", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestValidationRepository_IncrementVerdictCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewValidationRepository(db)
	ctx := context.Background()

	testCases := []struct {
		name    string
		verdict domain.Verdict
		column  string
		wantErr bool
	}{
		{"deliverable", domain.VerdictDeliverable, "deliverable_count", false},
		{"undeliverable", domain.VerdictUndeliverable, "undeliverable_count", false},
		{"risky", domain.VerdictRisky, "risky_count", false},
		{"unknown", domain.VerdictUnknown, "unknown_count", false},
		{"invalid verdict", domain.Verdict("bogus"), "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if !tc.wantErr {
				mock.ExpectExec("UPDATE validation_lists").
					WithArgs("list-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			}

			err := repo.IncrementVerdictCount(ctx, "list-1", tc.verdict)
			if (err != nil) != tc.wantErr {
				t.Errorf("IncrementVerdictCount() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestValidationRepository_InsertResults_Chunks(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewValidationRepository(db)
	ctx := context.Background()

	results := make([]domain.ValidationResult, 750)
	for i := range results {
		results[i] = domain.ValidationResult{
			ValidationListID: "list-1",
			Email:            "user@example.com",
			Result:           domain.VerdictDeliverable,
		}
	}

	// 750 rows insert as one full chunk of 500 and one of 250.
	mock.ExpectExec("INSERT INTO validation_results").
		WillReturnResult(sqlmock.NewResult(0, 500))
	mock.ExpectExec("INSERT INTO validation_results").
		WillReturnResult(sqlmock.NewResult(0, 250))

	if err := repo.InsertResults(ctx, results); err != nil {
		t.Fatalf("InsertResults() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestValidationRepository_ClaimPendingItems(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewValidationRepository(db)
	ctx := context.Background()

	itemColumns := []string{
		"id", "email", "validation_list_id", "status",
		"error_message", "created_at", "processed_at",
	}

	t.Run("claims items out of pending", func(t *testing.T) {
		rows := sqlmock.NewRows(itemColumns).
			AddRow("item-1", "a@example.com", "list-1", "processing", nil, time.Now(), nil).
			AddRow("item-2", "b@example.com", "list-1", "processing", nil, time.Now(), nil)
		mock.ExpectQuery(`(?s)UPDATE validation_queue_items\s+SET status = 'processing'.*FOR UPDATE SKIP LOCKED.*RETURNING`).
			WithArgs(10).
			WillReturnRows(rows)

		items, err := repo.ClaimPendingItems(ctx, 10)
		if err != nil {
			t.Fatalf("ClaimPendingItems() error = %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("len(items) = %d, want 2", len(items))
		}
		for _, item := range items {
			if item.Status != domain.QueueItemStatusProcessing {
				t.Errorf("item %s status = %q, want processing", item.ID, item.Status)
			}
		}
	})

	t.Run("empty queue claims nothing", func(t *testing.T) {
		mock.ExpectQuery("UPDATE validation_queue_items").
			WithArgs(10).
			WillReturnRows(sqlmock.NewRows(itemColumns))

		items, err := repo.ClaimPendingItems(ctx, 10)
		if err != nil {
			t.Fatalf("ClaimPendingItems() error = %v", err)
		}
		if len(items) != 0 {
			t.Errorf("len(items) = %d, want 0", len(items))
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestValidationRepository_MarkItemFailed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewValidationRepository(db)
	ctx := context.Background()

	testCases := []struct {
		name      string
		setupMock func()
		wantErr   bool
	}{
		{
			name: "marks the item failed",
			setupMock: func() {
				mock.ExpectExec("UPDATE validation_queue_items").
					WithArgs("item-1", "verify call timed out").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "missing item returns error",
			setupMock: func() {
				mock.ExpectExec("UPDATE validation_queue_items").
					WithArgs("item-1", "verify call timed out").
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			err := repo.MarkItemFailed(ctx, "item-1", "verify call timed out")
			if (err != nil) != tc.wantErr {
				t.Errorf("MarkItemFailed() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
