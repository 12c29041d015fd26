package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/extract"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

type fakeWriter struct {
	inserted []domain.Contact
	failOn   map[string]error
}

func (w *fakeWriter) InsertContact(_ context.Context, contact *domain.Contact) error {
	if err, ok := w.failOn[contact.Email]; ok {
		return err
	}
	w.inserted = append(w.inserted, *contact)
	return nil
}

func TestExtractor_Extract(t *testing.T) {
	writer := &fakeWriter{}
	extractor := extract.New(writer, nil, logger.NewNop())
	seen := make(map[string]struct{})

	items := []extract.Item{
		{
			Title:   "John Smith - Plumbing Services",
			Snippet: "Contact john.smith@acmeplumbing.com or call 416-555-0199 for a quote.",
			Link:    "https://acmeplumbing.example.com",
		},
		{
			Title:   "About Us",
			Snippet: "No contact information on this result.",
		},
		{
			Title:   "Jane Doe | Sales at Maple Leaf Consulting",
			Snippet: "reach out to jane@mapleleaf.ca today.",
			Link:    "https://mapleleaf.ca",
		},
	}

	contacts := extractor.Extract(context.Background(), "session-1", items, seen)

	require.Len(t, contacts, 2)
	assert.Len(t, writer.inserted, 2)

	first := contacts[0]
	assert.Equal(t, "john.smith@acmeplumbing.com", first.Email)
	assert.Equal(t, "session-1", first.SearchID)
	require.NotNil(t, first.Name)
	assert.Equal(t, "John Smith", *first.Name)
	require.NotNil(t, first.Phone)
	assert.Equal(t, "416-555-0199", *first.Phone)
	require.NotNil(t, first.Website)
	assert.Equal(t, "https://acmeplumbing.example.com", *first.Website)

	second := contacts[1]
	assert.Equal(t, "jane@mapleleaf.ca", second.Email)
	require.NotNil(t, second.Organization)
	assert.Equal(t, "Maple Leaf Consulting", *second.Organization)
}

func TestExtractor_DeduplicatesAcrossPages(t *testing.T) {
	writer := &fakeWriter{}
	extractor := extract.New(writer, nil, logger.NewNop())
	seen := make(map[string]struct{})
	ctx := context.Background()

	pageOne := []extract.Item{
		{Title: "Result A", Snippet: "Email dup@example.com here."},
		{Title: "Result B", Snippet: "Also dup@example.com again."},
	}
	pageTwo := []extract.Item{
		{Title: "Result C", Snippet: "Still dup@example.com on page two."},
		{Title: "Result D", Snippet: "Fresh contact new@example.com."},
	}

	first := extractor.Extract(ctx, "session-1", pageOne, seen)
	second := extractor.Extract(ctx, "session-1", pageTwo, seen)

	// One row per distinct email across the whole invocation.
	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Len(t, writer.inserted, 2)
	assert.Equal(t, "dup@example.com", writer.inserted[0].Email)
	assert.Equal(t, "new@example.com", writer.inserted[1].Email)
}

func TestExtractor_CaseInsensitiveDedup(t *testing.T) {
	writer := &fakeWriter{}
	extractor := extract.New(writer, nil, logger.NewNop())
	seen := make(map[string]struct{})

	items := []extract.Item{
		{Title: "A", Snippet: "Mail Sales@Example.com for info."},
		{Title: "B", Snippet: "Mail sales@example.com for info."},
	}

	contacts := extractor.Extract(context.Background(), "session-1", items, seen)

	require.Len(t, contacts, 1)
	assert.Equal(t, "sales@example.com", contacts[0].Email)
}

func TestExtractor_SocialLinksRouting(t *testing.T) {
	writer := &fakeWriter{}
	extractor := extract.New(writer, nil, logger.NewNop())
	seen := make(map[string]struct{})

	items := []extract.Item{
		{
			Title:   "A",
			Snippet: "Reach me at pro@example.com.",
			Link:    "https://www.linkedin.com/in/some-pro",
		},
		{
			Title:   "B",
			Snippet: "Reach me at shop@example.com.",
			Link:    "https://shop.example.com",
		},
	}

	contacts := extractor.Extract(context.Background(), "session-1", items, seen)

	require.Len(t, contacts, 2)
	require.NotNil(t, contacts[0].SocialLinks)
	assert.Equal(t, "https://www.linkedin.com/in/some-pro", *contacts[0].SocialLinks)
	assert.Nil(t, contacts[0].Website)
	require.NotNil(t, contacts[1].Website)
	assert.Nil(t, contacts[1].SocialLinks)
}

func TestExtractor_InsertFailureDropsContactOnly(t *testing.T) {
	writer := &fakeWriter{
		failOn: map[string]error{"bad@example.com": errors.New("insert rejected")},
	}
	extractor := extract.New(writer, nil, logger.NewNop())
	seen := make(map[string]struct{})

	items := []extract.Item{
		{Title: "A", Snippet: "Contact bad@example.com now."},
		{Title: "B", Snippet: "Contact good@example.com now."},
	}

	contacts := extractor.Extract(context.Background(), "session-1", items, seen)

	require.Len(t, contacts, 1)
	assert.Equal(t, "good@example.com", contacts[0].Email)
	assert.Len(t, writer.inserted, 1)
}

func TestRegexPolicy(t *testing.T) {
	policy := extract.NewRegexPolicy()

	t.Run("name at start with separator", func(t *testing.T) {
		name := policy.ExtractName("Mary Jones - Realtor in Sudbury")
		require.NotNil(t, name)
		assert.Equal(t, "Mary Jones", *name)
	})

	t.Run("no name without separator", func(t *testing.T) {
		assert.Nil(t, policy.ExtractName("Best plumbing company in town"))
	})

	t.Run("organization after at", func(t *testing.T) {
		org := policy.ExtractOrganization("Senior engineer at Northern Software")
		require.NotNil(t, org)
		assert.Equal(t, "Northern Software", *org)
	})

	t.Run("organization with legal suffix", func(t *testing.T) {
		org := policy.ExtractOrganization("our partner is Lakeshore Holdings Inc for details")
		require.NotNil(t, org)
		assert.Equal(t, "Lakeshore Holdings Inc", *org)
	})

	t.Run("no organization match", func(t *testing.T) {
		assert.Nil(t, policy.ExtractOrganization("no companies mentioned here"))
	})
}
