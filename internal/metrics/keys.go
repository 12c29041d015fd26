package metrics

import "fmt"

const (
	// KeyPrefixMetrics is the prefix for all metrics keys
	KeyPrefixMetrics = "metrics"
	// KeyPrefixSearches is the prefix for dispatched-search counters
	KeyPrefixSearches = "searches"
	// KeyPrefixContacts is the prefix for extracted-contact counters
	KeyPrefixContacts = "contacts"
	// KeyPrefixVerdicts is the prefix for per-verdict validation counters
	KeyPrefixVerdicts = "verdicts"
	// KeyPrefixJobErrors is the prefix for failed-job counters
	KeyPrefixJobErrors = "job_errors"
	// KeyLastPass is the Redis key for the last scheduler pass timestamp
	KeyLastPass = "metrics:last_pass"
	// MetricsTTLDays is the TTL in days for metrics counters
	MetricsTTLDays = 30
)

// RedisKeys provides methods to build Redis keys consistently
type RedisKeys struct {
	prefix string
}

// NewRedisKeys creates a new RedisKeys instance
func NewRedisKeys(prefix string) *RedisKeys {
	return &RedisKeys{prefix: prefix}
}

// Searches returns the Redis key for the dispatched-search counter
func (k *RedisKeys) Searches() string {
	return fmt.Sprintf("%s:%s", k.prefix, KeyPrefixSearches)
}

// Contacts returns the Redis key for the extracted-contact counter
func (k *RedisKeys) Contacts() string {
	return fmt.Sprintf("%s:%s", k.prefix, KeyPrefixContacts)
}

// Verdict returns the Redis key for a per-verdict validation counter
func (k *RedisKeys) Verdict(verdict string) string {
	return fmt.Sprintf("%s:%s:%s", k.prefix, KeyPrefixVerdicts, verdict)
}

// JobErrors returns the Redis key for the failed-job counter
func (k *RedisKeys) JobErrors() string {
	return fmt.Sprintf("%s:%s", k.prefix, KeyPrefixJobErrors)
}
