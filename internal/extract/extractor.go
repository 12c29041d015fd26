// Package extract pulls contact records out of raw search result pages.
package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

var (
	// Conservative RFC-5322-like address pattern.
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(?:\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}`)

	// North-American-style phone numbers, best effort.
	phonePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}`)
)

// Item is one search result row as returned by the search provider.
type Item struct {
	Title   string
	Snippet string
	Link    string
}

// ContactWriter persists extracted contacts.
type ContactWriter interface {
	InsertContact(ctx context.Context, contact *domain.Contact) error
}

// Extractor converts raw search results into persisted contacts,
// deduplicating by email within a single search invocation.
type Extractor struct {
	writer ContactWriter
	policy Policy
	logger logger.Logger
}

// New creates an Extractor. A nil policy falls back to the default
// regex heuristics.
func New(writer ContactWriter, policy Policy, log logger.Logger) *Extractor {
	if policy == nil {
		policy = NewRegexPolicy()
	}
	return &Extractor{
		writer: writer,
		policy: policy,
		logger: log,
	}
}

// Extract processes one page of search results. seen is the invocation-wide
// set of already-claimed emails; it is updated in place so duplicates across
// pages of the same invocation are suppressed. Each accepted contact is
// persisted immediately; a failed insert is logged, dropped from the
// returned slice, and does not abort extraction of subsequent results.
func (e *Extractor) Extract(ctx context.Context, sessionID string, items []Item, seen map[string]struct{}) []domain.Contact {
	contacts := make([]domain.Contact, 0, len(items))

	for i := range items {
		text := items[i].Title + " " + items[i].Snippet

		email := emailPattern.FindString(text)
		if email == "" {
			continue
		}
		email = strings.ToLower(email)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}

		contact := domain.Contact{
			SearchID:     sessionID,
			Email:        email,
			Name:         e.policy.ExtractName(text),
			Organization: e.policy.ExtractOrganization(text),
			Phone:        firstPhone(text),
		}
		if items[i].Link != "" {
			link := items[i].Link
			if isSocialLink(link) {
				contact.SocialLinks = &link
			} else {
				contact.Website = &link
			}
		}

		if err := e.writer.InsertContact(ctx, &contact); err != nil {
			e.logger.Warn("dropping contact, insert failed",
				logger.String("email", email),
				logger.String("search_id", sessionID),
				logger.Error(err))
			continue
		}
		contacts = append(contacts, contact)
	}

	return contacts
}

var socialHosts = []string{
	"linkedin.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
}

// isSocialLink reports whether link points at a known social network.
func isSocialLink(link string) bool {
	lower := strings.ToLower(link)
	for _, host := range socialHosts {
		if strings.Contains(lower, host+"/") || strings.HasSuffix(lower, host) {
			return true
		}
	}
	return false
}

// firstPhone returns at most the first phone match per result.
func firstPhone(text string) *string {
	phone := phonePattern.FindString(text)
	if phone == "" {
		return nil
	}
	return &phone
}
