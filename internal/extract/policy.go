package extract

import "regexp"

// Policy extracts optional structured facts from unstructured result text.
// Name and organization extraction are best-effort heuristics with no
// correctness guarantee; implementations are swappable so the rules can be
// improved without touching the pipeline.
type Policy interface {
	ExtractName(text string) *string
	ExtractOrganization(text string) *string
}

var (
	// A "Capitalized Capitalized" token pair at the start of the text,
	// followed by a separator.
	namePattern = regexp.MustCompile(`^([A-Z][a-z]+ [A-Z][a-z]+)\s*[-–—|:,]`)

	// "at Capitalized Phrase" or "@ Capitalized Phrase".
	orgAtPattern = regexp.MustCompile(`(?:\bat\s+|@\s+)([A-Z][A-Za-z&]*(?:[ -][A-Z][A-Za-z&]*)*)`)

	// A capitalized phrase ending in a legal-entity suffix.
	orgSuffixPattern = regexp.MustCompile(`([A-Z][A-Za-z&]*(?:[ -][A-Z][A-Za-z&]*)*[ -](?:Inc|LLC|Ltd|Corp))\b`)
)

// RegexPolicy is the default heuristic policy built on regular expressions.
type RegexPolicy struct{}

// NewRegexPolicy returns the default extraction policy.
func NewRegexPolicy() *RegexPolicy {
	return &RegexPolicy{}
}

// ExtractName returns a "First Last" pair found at the start of the text,
// or nil when no match.
func (p *RegexPolicy) ExtractName(text string) *string {
	match := namePattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	return &match[1]
}

// ExtractOrganization returns an organization name found after "at"/"@" or a
// capitalized phrase carrying a legal-entity suffix, or nil when no match.
func (p *RegexPolicy) ExtractOrganization(text string) *string {
	if match := orgAtPattern.FindStringSubmatch(text); match != nil {
		return &match[1]
	}
	if match := orgSuffixPattern.FindStringSubmatch(text); match != nil {
		return &match[1]
	}
	return nil
}
