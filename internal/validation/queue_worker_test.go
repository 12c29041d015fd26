package validation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/truelist"
)

type fakeQueueStore struct {
	mu        sync.Mutex
	pending   []domain.ValidationQueueItem
	completed []string
	failed    map[string]string
	results   []domain.ValidationResult
	verdicts  map[domain.Verdict]int
	insertErr error
}

func newFakeQueueStore(pending []domain.ValidationQueueItem) *fakeQueueStore {
	return &fakeQueueStore{
		pending:  pending,
		failed:   make(map[string]string),
		verdicts: make(map[domain.Verdict]int),
	}
}

// ClaimPendingItems mirrors the repository's claim: items leave pending
// atomically, so a second caller cannot see them.
func (s *fakeQueueStore) ClaimPendingItems(_ context.Context, limit int) ([]domain.ValidationQueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.pending) {
		limit = len(s.pending)
	}
	claimed := make([]domain.ValidationQueueItem, limit)
	copy(claimed, s.pending[:limit])
	s.pending = s.pending[limit:]
	for i := range claimed {
		claimed[i].Status = domain.QueueItemStatusProcessing
	}
	return claimed, nil
}

func (s *fakeQueueStore) MarkItemCompleted(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = append(s.completed, itemID)
	return nil
}

func (s *fakeQueueStore) MarkItemFailed(_ context.Context, itemID, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[itemID] = errorMsg
	return nil
}

func (s *fakeQueueStore) InsertResult(_ context.Context, result *domain.ValidationResult) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *result)
	return nil
}

func (s *fakeQueueStore) IncrementVerdictCount(_ context.Context, _ string, verdict domain.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verdicts[verdict]++
	return nil
}

type fakeVerifier struct {
	mu      sync.Mutex
	calls   int
	delay   time.Duration
	results map[string]*truelist.SingleResult
	errs    map[string]error
}

func (v *fakeVerifier) VerifySingle(_ context.Context, email string) (*truelist.SingleResult, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.delay > 0 {
		time.Sleep(v.delay)
	}
	if err, ok := v.errs[email]; ok {
		return nil, err
	}
	if res, ok := v.results[email]; ok {
		return res, nil
	}
	return &truelist.SingleResult{Email: email, FormatValid: true, DomainValid: true, SMTPValid: true, Deliverable: true}, nil
}

func pendingItems(n int) []domain.ValidationQueueItem {
	items := make([]domain.ValidationQueueItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.ValidationQueueItem{
			ID:               fmt.Sprintf("item-%d", i),
			Email:            fmt.Sprintf("user%d@example.com", i),
			ValidationListID: "list-1",
			Status:           domain.QueueItemStatusPending,
		})
	}
	return items
}

func TestQueueWorker_ProcessPending(t *testing.T) {
	store := newFakeQueueStore(pendingItems(5))
	verifier := &fakeVerifier{}
	worker := NewQueueWorker(store, verifier, 10, logger.NewNop())

	summary, err := worker.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Claimed)
	assert.Equal(t, 5, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 5, verifier.calls)
	assert.Len(t, store.completed, 5)
	assert.Len(t, store.results, 5)
	assert.Equal(t, 5, store.verdicts[domain.VerdictDeliverable])
}

func TestQueueWorker_ProcessPending_RespectsBatchSize(t *testing.T) {
	store := newFakeQueueStore(pendingItems(10))
	worker := NewQueueWorker(store, &fakeVerifier{}, 3, logger.NewNop())

	summary, err := worker.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Claimed)
	assert.Equal(t, 3, summary.Succeeded)
}

func TestQueueWorker_ProcessPending_ConcurrentPassesProcessEachItemOnce(t *testing.T) {
	store := newFakeQueueStore(pendingItems(3))
	verifier := &fakeVerifier{delay: 50 * time.Millisecond}
	worker := NewQueueWorker(store, verifier, 10, logger.NewNop())
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		summaries [2]*PassSummary
		errs      [2]error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			summaries[i], errs[i] = worker.ProcessPending(ctx)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// Items leave pending at claim time, so the overlapping pass sees none
	// of them even while the first pass's provider calls are in flight.
	assert.Equal(t, 3, summaries[0].Claimed+summaries[1].Claimed)
	assert.Equal(t, 3, verifier.calls)
	assert.Len(t, store.results, 3)
	assert.Len(t, store.completed, 3)
	assert.Equal(t, 3, store.verdicts[domain.VerdictDeliverable])
}

func TestQueueWorker_ProcessPending_ItemFailureIsolated(t *testing.T) {
	store := newFakeQueueStore(pendingItems(3))
	verifier := &fakeVerifier{
		errs: map[string]error{"user1@example.com": errors.New("timeout")},
	}
	worker := NewQueueWorker(store, verifier, 10, logger.NewNop())

	summary, err := worker.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "timeout", store.failed["item-1"])
	assert.Len(t, store.completed, 2)
	assert.Equal(t, 2, store.verdicts[domain.VerdictDeliverable])
}

func TestQueueWorker_ProcessPending_VerdictClassification(t *testing.T) {
	store := newFakeQueueStore(pendingItems(3))
	verifier := &fakeVerifier{
		results: map[string]*truelist.SingleResult{
			"user0@example.com": {FormatValid: true, DomainValid: true, SMTPValid: true, Deliverable: true},
			"user1@example.com": {FormatValid: false},
			"user2@example.com": {FormatValid: true, DomainValid: true, CatchAll: true},
		},
	}
	worker := NewQueueWorker(store, verifier, 10, logger.NewNop())

	summary, err := worker.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 1, store.verdicts[domain.VerdictDeliverable])
	assert.Equal(t, 1, store.verdicts[domain.VerdictUndeliverable])
	assert.Equal(t, 1, store.verdicts[domain.VerdictRisky])
}

func TestQueueWorker_ProcessPending_InsertFailureMarksItemFailed(t *testing.T) {
	store := newFakeQueueStore(pendingItems(1))
	store.insertErr = errors.New("db down")
	worker := NewQueueWorker(store, &fakeVerifier{}, 10, logger.NewNop())

	summary, err := worker.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "db down", store.failed["item-0"])
	assert.Empty(t, store.completed)
}

func TestQueueWorker_ProcessPending_EmptyQueue(t *testing.T) {
	store := newFakeQueueStore(nil)
	worker := NewQueueWorker(store, &fakeVerifier{}, 10, logger.NewNop())

	summary, err := worker.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &PassSummary{}, summary)
}
