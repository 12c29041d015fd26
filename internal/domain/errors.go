package domain

import "errors"

// ErrNotFound is returned when an entity is not found in the database.
var ErrNotFound = errors.New("entity not found")

// ErrMissingAPIKey is returned when a required provider API key is absent
// from configuration. It is raised at construction time, before any
// external call is attempted.
var ErrMissingAPIKey = errors.New("missing required API key")

// ErrAlreadyReconciled is returned when reconciliation is requested for a
// validation list that has already reached a terminal state. Guarding here
// prevents duplicate per-email result rows on repeated webhook delivery.
var ErrAlreadyReconciled = errors.New("validation list already reconciled")

// ErrInvalidBatch is returned when creating a search batch with invalid fields.
var ErrInvalidBatch = errors.New("invalid search batch")

// ErrNoEmails is returned when a validation submission contains no usable
// email addresses after normalization.
var ErrNoEmails = errors.New("no emails to validate")
