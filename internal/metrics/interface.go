package metrics

import (
	"context"

	"github.com/jonesrussell/leadharvest/internal/domain"
)

// Recorder defines the interface for tracking pipeline metrics.
// This interface allows for easy testing and potential future implementations.
type Recorder interface {
	// IncrementSearches increments the dispatched-search counter
	IncrementSearches(ctx context.Context) error
	// AddContacts adds to the extracted-contact counter
	AddContacts(ctx context.Context, count int) error
	// IncrementVerdict increments the counter for one validation verdict
	IncrementVerdict(ctx context.Context, verdict domain.Verdict) error
	// IncrementJobErrors increments the failed-job counter
	IncrementJobErrors(ctx context.Context) error
	// GetStats returns aggregated statistics
	GetStats(ctx context.Context) (*Stats, error)
	// UpdateLastPass updates the last scheduler pass timestamp
	UpdateLastPass(ctx context.Context) error
}
