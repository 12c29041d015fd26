package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/leadharvest/internal/api"
	"github.com/jonesrussell/leadharvest/internal/dispatch"
	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/scheduler"
	"github.com/jonesrussell/leadharvest/internal/validation"
)

type mockBatchStore struct {
	batches     map[string]*domain.SearchBatch
	addedJobs   map[string][]domain.SearchJob
	statusCalls map[string]domain.BatchStatus
	staleReset  int64
}

func newMockBatchStore() *mockBatchStore {
	return &mockBatchStore{
		batches:     make(map[string]*domain.SearchBatch),
		addedJobs:   make(map[string][]domain.SearchJob),
		statusCalls: make(map[string]domain.BatchStatus),
	}
}

func (m *mockBatchStore) CreateBatch(_ context.Context, batch *domain.SearchBatch) error {
	batch.ID = "batch-1"
	m.batches[batch.ID] = batch
	return nil
}

func (m *mockBatchStore) AddJobs(_ context.Context, batchID string, jobs []domain.SearchJob) error {
	m.addedJobs[batchID] = append(m.addedJobs[batchID], jobs...)
	return nil
}

func (m *mockBatchStore) GetBatch(_ context.Context, id string) (*domain.SearchBatch, error) {
	batch, ok := m.batches[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return batch, nil
}

func (m *mockBatchStore) ListBatches(_ context.Context, _ int) ([]domain.SearchBatch, error) {
	batches := make([]domain.SearchBatch, 0, len(m.batches))
	for _, b := range m.batches {
		batches = append(batches, *b)
	}
	return batches, nil
}

func (m *mockBatchStore) SetBatchStatus(_ context.Context, batchID string, status domain.BatchStatus) error {
	if _, ok := m.batches[batchID]; !ok {
		return domain.ErrNotFound
	}
	m.statusCalls[batchID] = status
	return nil
}

func (m *mockBatchStore) ResetStaleRunningJobs(_ context.Context, _ time.Duration) (int64, error) {
	return m.staleReset, nil
}

func (m *mockBatchStore) Ping(_ context.Context) error { return nil }

type mockScheduler struct {
	summary *scheduler.PassSummary
}

func (m *mockScheduler) Advance(_ context.Context) (*scheduler.PassSummary, error) {
	return m.summary, nil
}

type mockSearchService struct {
	result *dispatch.Result
	err    error
}

func (m *mockSearchService) Search(_ context.Context, _, _ string, _ int) (*dispatch.Result, error) {
	return m.result, m.err
}

type mockValidationStore struct {
	lists    map[string]*domain.ValidationList
	enqueued map[string][]string
}

func newMockValidationStore() *mockValidationStore {
	return &mockValidationStore{
		lists:    make(map[string]*domain.ValidationList),
		enqueued: make(map[string][]string),
	}
}

func (m *mockValidationStore) GetList(_ context.Context, id string) (*domain.ValidationList, error) {
	list, ok := m.lists[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return list, nil
}

func (m *mockValidationStore) ListLists(_ context.Context, _ string, _ int) ([]domain.ValidationList, error) {
	return nil, nil
}

func (m *mockValidationStore) ListResults(_ context.Context, _ string, _, _ int) ([]domain.ValidationResult, error) {
	return nil, nil
}

func (m *mockValidationStore) EnqueueItems(_ context.Context, listID string, emails []string) error {
	m.enqueued[listID] = emails
	return nil
}

type mockSubmitter struct {
	result *validation.SubmitResult
	err    error
}

func (m *mockSubmitter) Submit(_ context.Context, _ validation.SubmitRequest) (*validation.SubmitResult, error) {
	return m.result, m.err
}

type mockReconciler struct {
	status *validation.Status
	err    error
	calls  []string
}

func (m *mockReconciler) Reconcile(_ context.Context, externalBatchID string) (*validation.Status, error) {
	m.calls = append(m.calls, externalBatchID)
	return m.status, m.err
}

type mockQueueProcessor struct {
	summary *validation.PassSummary
}

func (m *mockQueueProcessor) ProcessPending(_ context.Context) (*validation.PassSummary, error) {
	return m.summary, nil
}

type testDeps struct {
	batches    *mockBatchStore
	lists      *mockValidationStore
	reconciler *mockReconciler
}

func setupTestRouter(t *testing.T, mutate func(*api.Deps, *testDeps)) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	td := &testDeps{
		batches:    newMockBatchStore(),
		lists:      newMockValidationStore(),
		reconciler: &mockReconciler{status: &validation.Status{ListID: "list-1", Completed: true}},
	}

	deps := api.Deps{
		Batches:    td.batches,
		Sessions:   nil,
		Search:     &mockSearchService{result: &dispatch.Result{SessionID: "sess-1"}},
		Scheduler:  &mockScheduler{summary: &scheduler.PassSummary{BatchesSeen: 2, JobsCompleted: 2}},
		Lists:      td.lists,
		Submitter:  &mockSubmitter{result: &validation.SubmitResult{ListID: "list-1", ExternalBatchID: "ext-1", EmailCount: 2}},
		Reconciler: td.reconciler,
		Queue:      &mockQueueProcessor{summary: &validation.PassSummary{Claimed: 1, Succeeded: 1}},
	}
	if mutate != nil {
		mutate(&deps, td)
	}

	router := api.NewRouter(deps, nil, logger.NewNop())
	return router.Engine(), td
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateBatch(t *testing.T) {
	engine, td := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/batches", map[string]any{
		"name":          "ontario plumbers",
		"delay_seconds": 60,
		"jobs": []map[string]any{
			{"query": "plumbers", "location": "Toronto", "pages": 2},
			{"query": "plumbers", "location": "Ottawa", "pages": 2},
		},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, td.batches.addedJobs["batch-1"], 2)

	var batch domain.SearchBatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	assert.Equal(t, domain.BatchStatusPending, batch.Status)
}

func TestCreateBatch_MissingName(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/batches", map[string]any{
		"delay_seconds": 60,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPauseBatch(t *testing.T) {
	engine, td := setupTestRouter(t, nil)
	td.batches.batches["batch-7"] = &domain.SearchBatch{ID: "batch-7", Status: domain.BatchStatusRunning}

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/batches/batch-7/pause", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.BatchStatusPaused, td.batches.statusCalls["batch-7"])
}

func TestPauseBatch_NotFound(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/batches/missing/pause", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdvanceQueue(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/batches/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary scheduler.PassSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.BatchesSeen)
	assert.Equal(t, 2, summary.JobsCompleted)
}

func TestDispatchSearch(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/searches", map[string]any{
		"query":    "electricians",
		"location": "Hamilton",
		"pages":    2,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestDispatchSearch_MissingQuery(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/searches", map[string]any{
		"location": "Hamilton",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitList(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/lists", map[string]any{
		"name":   "prospects",
		"emails": []string{"a@x.com", "b@x.com"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result validation.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "ext-1", result.ExternalBatchID)
}

func TestReconcileList(t *testing.T) {
	engine, td := setupTestRouter(t, nil)
	externalID := "ext-9"
	td.lists.lists["list-1"] = &domain.ValidationList{ID: "list-1", ExternalBatchID: &externalID}

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/lists/list-1/reconcile", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ext-9"}, td.reconciler.calls)
}

func TestReconcileList_NoExternalBatch(t *testing.T) {
	engine, td := setupTestRouter(t, nil)
	td.lists.lists["list-1"] = &domain.ValidationList{ID: "list-1"}

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/lists/list-1/reconcile", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReconcileList_AlreadyReconciled(t *testing.T) {
	engine, td := setupTestRouter(t, func(deps *api.Deps, _ *testDeps) {
		deps.Reconciler = &mockReconciler{err: domain.ErrAlreadyReconciled}
	})
	externalID := "ext-9"
	td.lists.lists["list-1"] = &domain.ValidationList{ID: "list-1", ExternalBatchID: &externalID}

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/lists/list-1/reconcile", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidationWebhook(t *testing.T) {
	engine, td := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/webhook", map[string]any{
		"id": "ext-42",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ext-42"}, td.reconciler.calls)
}

func TestValidationWebhook_MissingID(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/webhook", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEnqueueListItems(t *testing.T) {
	engine, td := setupTestRouter(t, nil)
	td.lists.lists["list-1"] = &domain.ValidationList{ID: "list-1"}

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/lists/list-1/queue", map[string]any{
		"emails": []string{" A@x.com ", "a@x.com", "b@x.com"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, td.lists.enqueued["list-1"])
}

func TestProcessQueue(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodPost, "/api/v1/validation/queue/process", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary validation.PassSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.Succeeded)
}

func TestHealth(t *testing.T) {
	engine, _ := setupTestRouter(t, nil)

	rec := doJSON(t, engine, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}
