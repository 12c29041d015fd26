package metrics

import "time"

// Stats holds aggregated pipeline counters read back from Redis.
type Stats struct {
	Searches  int64            `json:"searches"`
	Contacts  int64            `json:"contacts"`
	Verdicts  map[string]int64 `json:"verdicts"`
	JobErrors int64            `json:"job_errors"`
	LastPass  time.Time        `json:"last_pass"`
}
