// Package validation implements the email-validation pipeline: batch
// submission, reconciliation of provider results, and the per-email
// queue worker.
package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/truelist"
)

// ListStore is the persistence surface the submitter needs.
type ListStore interface {
	CreateList(ctx context.Context, list *domain.ValidationList) error
	ResetList(ctx context.Context, listID string, totalEmails int) error
	SetExternalBatchID(ctx context.Context, listID, externalID string) error
	MarkListFailed(ctx context.Context, listID string) error
}

// BatchCreator submits an email set to the verification provider.
type BatchCreator interface {
	CreateBatch(ctx context.Context, emails []string, filename, webhookURL string) (*truelist.Batch, error)
}

// Submitter creates or reuses a validation list and submits its emails as
// one external verification batch.
type Submitter struct {
	store      ListStore
	provider   BatchCreator
	webhookURL string
	logger     logger.Logger
}

// NewSubmitter creates a Submitter. webhookURL, when non-empty, is passed
// to the provider so batch completion is pushed back instead of polled.
func NewSubmitter(store ListStore, provider BatchCreator, webhookURL string, log logger.Logger) *Submitter {
	return &Submitter{
		store:      store,
		provider:   provider,
		webhookURL: webhookURL,
		logger:     log,
	}
}

// SubmitRequest describes one batch submission.
type SubmitRequest struct {
	Emails         []string
	ListName       string
	UserID         string
	ExistingListID string
}

// SubmitResult carries the identifiers the caller needs to poll.
type SubmitResult struct {
	ListID          string `json:"list_id"`
	ExternalBatchID string `json:"external_batch_id"`
	EmailCount      int    `json:"email_count"`
}

// Submit normalizes the email set, scaffolds or resets the validation list,
// and submits one external batch. On provider failure the list is marked
// failed before the error is returned, so callers can distinguish "never
// started" from "failed to start".
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	emails := NormalizeEmails(req.Emails)
	if len(emails) == 0 {
		return nil, domain.ErrNoEmails
	}

	listID := req.ExistingListID
	if listID != "" {
		// Idempotent re-submission path for a previously scaffolded list.
		if err := s.store.ResetList(ctx, listID, len(emails)); err != nil {
			return nil, fmt.Errorf("reset list: %w", err)
		}
	} else {
		list := &domain.ValidationList{
			Name:        req.ListName,
			UserID:      req.UserID,
			Status:      domain.ListStatusProcessing,
			TotalEmails: len(emails),
		}
		if err := s.store.CreateList(ctx, list); err != nil {
			return nil, fmt.Errorf("create list: %w", err)
		}
		listID = list.ID
	}

	batch, err := s.provider.CreateBatch(ctx, emails, req.ListName+".csv", s.webhookURL)
	if err != nil {
		if markErr := s.store.MarkListFailed(ctx, listID); markErr != nil {
			s.logger.Error("failed to mark list failed after submission error",
				logger.String("list_id", listID),
				logger.Error(markErr))
		}
		return nil, fmt.Errorf("create verification batch: %w", err)
	}

	if err := s.store.SetExternalBatchID(ctx, listID, batch.ID); err != nil {
		return nil, fmt.Errorf("store external batch id: %w", err)
	}

	s.logger.Info("validation batch submitted",
		logger.String("list_id", listID),
		logger.String("external_batch_id", batch.ID),
		logger.Int("email_count", len(emails)))

	return &SubmitResult{
		ListID:          listID,
		ExternalBatchID: batch.ID,
		EmailCount:      len(emails),
	}, nil
}

// NormalizeEmails trims and lowercases addresses, dropping empties and
// duplicates while preserving first-seen order.
func NormalizeEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		normalized = append(normalized, email)
	}
	return normalized
}
