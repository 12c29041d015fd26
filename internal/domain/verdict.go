package domain

import "strings"

// Verdict is the provider-agnostic classification every external
// verification result is mapped into.
type Verdict string

const (
	VerdictDeliverable   Verdict = "deliverable"
	VerdictUndeliverable Verdict = "undeliverable"
	VerdictRisky         Verdict = "risky"
	VerdictUnknown       Verdict = "unknown"
)

// providerStates maps provider state and sub-state strings to verdicts.
// This table is the single classification authority: both the paginated
// JSON reconciliation path and the annotated CSV path consult it, so the
// two paths can never disagree on the same state string.
var providerStates = map[string]Verdict{
	"ok":                  VerdictDeliverable,
	"email_ok":            VerdictDeliverable,
	"passed":              VerdictDeliverable,
	"ok_for_all":          VerdictRisky,
	"accept_all":          VerdictRisky,
	"disposable":          VerdictRisky,
	"role":                VerdictRisky,
	"role_account":        VerdictRisky,
	"risky":               VerdictRisky,
	"failed":              VerdictUndeliverable,
	"failed_syntax_check": VerdictUndeliverable,
	"failed_mx_check":     VerdictUndeliverable,
	"failed_no_mailbox":   VerdictUndeliverable,
	"failed_smtp_check":   VerdictUndeliverable,
	"invalid":             VerdictUndeliverable,
	"unknown":             VerdictUnknown,
}

// MapProviderState normalizes a provider state/sub-state pair into a verdict.
// The sub-state wins when it is recognized, since providers report the
// coarse state ("failed") alongside the precise reason ("failed_mx_check").
func MapProviderState(state, subState string) Verdict {
	if v, ok := providerStates[normalizeState(subState)]; ok {
		return v
	}
	if v, ok := providerStates[normalizeState(state)]; ok {
		return v
	}
	return VerdictUnknown
}

func normalizeState(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// BucketCounts holds aggregate verdict totals for a completed batch.
type BucketCounts struct {
	Deliverable   int
	Undeliverable int
	Risky         int
	Unknown       int
}

// Total returns the sum of the four buckets.
func (c BucketCounts) Total() int {
	return c.Deliverable + c.Undeliverable + c.Risky + c.Unknown
}

// ProviderCounts holds the raw aggregate counters returned by the batch
// verification provider.
type ProviderCounts struct {
	OK              int
	FailedSyntax    int
	FailedMX        int
	FailedNoMailbox int
	OKForAll        int
	Disposable      int
	Role            int
	Unknown         int
}

// Buckets maps provider aggregate counters into normalized verdict buckets.
// Accept-all, disposable and role accounts are treated as risky rather than
// deliverable or undeliverable; this matches the per-email table above.
func (p ProviderCounts) Buckets() BucketCounts {
	return BucketCounts{
		Deliverable:   p.OK,
		Undeliverable: p.FailedSyntax + p.FailedMX + p.FailedNoMailbox,
		Risky:         p.OKForAll + p.Disposable + p.Role,
		Unknown:       p.Unknown,
	}
}

// SingleCheck holds the relevant flags from a single-email verification call.
type SingleCheck struct {
	FormatValid bool
	DomainValid bool
	SMTPValid   bool
	Deliverable bool
	CatchAll    bool
	Disposable  bool
}

// Classify maps a single-email check into a verdict: deliverable when the
// provider says so; undeliverable on disposable addresses or syntax/domain
// failures; risky when the mailbox is catch-all or SMTP-unverifiable.
func (c SingleCheck) Classify() Verdict {
	switch {
	case c.Deliverable:
		return VerdictDeliverable
	case c.Disposable, !c.FormatValid, !c.DomainValid:
		return VerdictUndeliverable
	case c.CatchAll, !c.SMTPValid:
		return VerdictRisky
	default:
		return VerdictUnknown
	}
}
