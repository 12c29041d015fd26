package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/leadharvest/internal/dispatch"
	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/extract"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/serper"
)

type fakeSearcher struct {
	pages      map[int][]serper.OrganicResult
	failPages  map[int]error
	queries    []string
	pagesAsked []int
}

func (s *fakeSearcher) Search(_ context.Context, query string, _, page int) ([]serper.OrganicResult, error) {
	s.queries = append(s.queries, query)
	s.pagesAsked = append(s.pagesAsked, page)
	if err, ok := s.failPages[page]; ok {
		return nil, err
	}
	return s.pages[page], nil
}

type fakeSessions struct {
	created int
}

func (s *fakeSessions) CreateSession(_ context.Context, query, location string) (*domain.SearchSession, error) {
	s.created++
	return &domain.SearchSession{
		ID:       fmt.Sprintf("session-%d", s.created),
		Query:    query,
		Location: location,
	}, nil
}

type memoryWriter struct {
	contacts []domain.Contact
}

func (w *memoryWriter) InsertContact(_ context.Context, contact *domain.Contact) error {
	w.contacts = append(w.contacts, *contact)
	return nil
}

func newDispatcher(searcher *fakeSearcher, sessions *fakeSessions, writer *memoryWriter) *dispatch.Dispatcher {
	log := logger.NewNop()
	extractor := extract.New(writer, nil, log)
	return dispatch.New(searcher, sessions, extractor, dispatch.Config{ResultsPerPage: 10}, log)
}

func TestDispatcher_Search(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[int][]serper.OrganicResult{
			1: {{Title: "A", Snippet: "first@example.com", Link: "https://a.example.com"}},
			2: {{Title: "B", Snippet: "second@example.com"}},
		},
	}
	sessions := &fakeSessions{}
	writer := &memoryWriter{}

	result, err := newDispatcher(searcher, sessions, writer).
		Search(context.Background(), "plumbers", "Toronto", 2)
	require.NoError(t, err)

	assert.Equal(t, "session-1", result.SessionID)
	assert.Len(t, result.Contacts, 2)
	// Returned contacts are exactly the persisted rows.
	assert.Equal(t, writer.contacts, result.Contacts)
	// Location is folded into the effective query with a single space.
	assert.Equal(t, "plumbers Toronto", searcher.queries[0])
	// Pages fetched sequentially in increasing order.
	assert.Equal(t, []int{1, 2}, searcher.pagesAsked)
}

func TestDispatcher_ClampsPageCount(t *testing.T) {
	searcher := &fakeSearcher{pages: map[int][]serper.OrganicResult{}}
	sessions := &fakeSessions{}
	writer := &memoryWriter{}
	d := newDispatcher(searcher, sessions, writer)

	_, err := d.Search(context.Background(), "q", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, searcher.pagesAsked)

	searcher.pagesAsked = nil
	_, err = d.Search(context.Background(), "q", "", 99)
	require.NoError(t, err)
	assert.Len(t, searcher.pagesAsked, 20)
}

func TestDispatcher_SkipsFailedPages(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[int][]serper.OrganicResult{
			1: {{Title: "A", Snippet: "keep@example.com"}},
			3: {{Title: "C", Snippet: "also@example.com"}},
		},
		failPages: map[int]error{2: errors.New("provider 502")},
	}
	sessions := &fakeSessions{}
	writer := &memoryWriter{}

	result, err := newDispatcher(searcher, sessions, writer).
		Search(context.Background(), "roofers", "", 3)
	require.NoError(t, err)

	// Page 2's failure does not abort pages 1 and 3.
	assert.Len(t, result.Contacts, 2)
	assert.Equal(t, []int{1, 2, 3}, searcher.pagesAsked)
}

func TestDispatcher_AllPagesFailReturnsEmpty(t *testing.T) {
	searcher := &fakeSearcher{
		failPages: map[int]error{
			1: errors.New("unreachable"),
			2: errors.New("unreachable"),
		},
	}
	sessions := &fakeSessions{}
	writer := &memoryWriter{}

	result, err := newDispatcher(searcher, sessions, writer).
		Search(context.Background(), "electricians", "Ottawa", 2)

	require.NoError(t, err)
	assert.Empty(t, result.Contacts)
	// The session row still exists so the invocation is attributable.
	assert.Equal(t, 1, sessions.created)
}

func TestDispatcher_DeduplicatesAcrossPages(t *testing.T) {
	searcher := &fakeSearcher{
		pages: map[int][]serper.OrganicResult{
			1: {{Title: "A", Snippet: "same@example.com"}},
			2: {{Title: "B", Snippet: "same@example.com"}},
		},
	}
	sessions := &fakeSessions{}
	writer := &memoryWriter{}

	result, err := newDispatcher(searcher, sessions, writer).
		Search(context.Background(), "welders", "", 2)
	require.NoError(t, err)

	require.Len(t, result.Contacts, 1)
	assert.Equal(t, "same@example.com", result.Contacts[0].Email)
	assert.Len(t, writer.contacts, 1)
}
