// Package dispatch executes one logical search against the search provider
// and persists the extracted contacts.
package dispatch

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/extract"
	"github.com/jonesrussell/leadharvest/internal/logger"
	"github.com/jonesrussell/leadharvest/internal/serper"
)

const (
	minPages = 1
	maxPages = 20
)

// Searcher fetches one page of organic results.
type Searcher interface {
	Search(ctx context.Context, query string, resultsPerPage, page int) ([]serper.OrganicResult, error)
}

// SessionStore creates the search session that owns this invocation's
// contacts.
type SessionStore interface {
	CreateSession(ctx context.Context, query, location string) (*domain.SearchSession, error)
}

// Dispatcher runs one search invocation: one session, a sequential page
// loop, and a shared seen-set for cross-page deduplication. Pages are
// fetched in order, never in parallel, to respect provider rate limits and
// keep deduplication deterministic.
type Dispatcher struct {
	searcher       Searcher
	sessions       SessionStore
	extractor      *extract.Extractor
	limiter        *rate.Limiter
	resultsPerPage int
	logger         logger.Logger
}

// Config holds dispatcher settings.
type Config struct {
	ResultsPerPage int
	// PagesPerSecond paces page fetches against the provider. Zero
	// disables pacing.
	PagesPerSecond float64
}

// New creates a Dispatcher.
func New(searcher Searcher, sessions SessionStore, extractor *extract.Extractor, cfg Config, log logger.Logger) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.PagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PagesPerSecond), 1)
	}
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = 10
	}

	return &Dispatcher{
		searcher:       searcher,
		sessions:       sessions,
		extractor:      extractor,
		limiter:        limiter,
		resultsPerPage: cfg.ResultsPerPage,
		logger:         log,
	}
}

// Result is the outcome of one search invocation.
type Result struct {
	SessionID string           `json:"session_id"`
	Contacts  []domain.Contact `json:"contacts"`
}

// Search executes query+location across pageCount pages (clamped to
// [1, 20]). A single failed page fetch is logged and skipped; if every page
// fails the invocation still succeeds with an empty contact list, and only
// the logs distinguish total failure from no results.
func (d *Dispatcher) Search(ctx context.Context, query, location string, pageCount int) (*Result, error) {
	if pageCount < minPages {
		pageCount = minPages
	}
	if pageCount > maxPages {
		pageCount = maxPages
	}

	effective := query
	if location != "" {
		effective = query + " " + location
	}

	session, err := d.sessions.CreateSession(ctx, query, location)
	if err != nil {
		return nil, fmt.Errorf("create search session: %w", err)
	}

	seen := make(map[string]struct{})
	contacts := make([]domain.Contact, 0)

	for page := 1; page <= pageCount; page++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		results, err := d.searcher.Search(ctx, effective, d.resultsPerPage, page)
		if err != nil {
			d.logger.Warn("page fetch failed, skipping",
				logger.String("query", effective),
				logger.Int("page", page),
				logger.Error(err))
			continue
		}

		items := make([]extract.Item, 0, len(results))
		for _, r := range results {
			items = append(items, extract.Item{Title: r.Title, Snippet: r.Snippet, Link: r.Link})
		}

		contacts = append(contacts, d.extractor.Extract(ctx, session.ID, items, seen)...)
	}

	d.logger.Info("search dispatched",
		logger.String("session_id", session.ID),
		logger.String("query", effective),
		logger.Int("pages", pageCount),
		logger.Int("contacts", len(contacts)))

	return &Result{SessionID: session.ID, Contacts: contacts}, nil
}
