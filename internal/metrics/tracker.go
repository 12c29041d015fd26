// Package metrics tracks pipeline counters in Redis and exposes them to
// Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/leadharvest/internal/domain"
	"github.com/jonesrussell/leadharvest/internal/logger"
)

// verdictNames is the fixed set of per-verdict counters GetStats reads.
var verdictNames = []domain.Verdict{
	domain.VerdictDeliverable,
	domain.VerdictUndeliverable,
	domain.VerdictRisky,
	domain.VerdictUnknown,
}

// HoursPerDay converts the day-denominated TTL constants to time.Duration.
const HoursPerDay = 24

// Tracker implements Recorder using Redis
type Tracker struct {
	client redis.UniversalClient
	keys   *RedisKeys
	logger logger.Logger
	prom   *PromMetrics
}

// NewTracker creates a new metrics tracker. prom may be nil when Prometheus
// exposition is disabled.
func NewTracker(client redis.UniversalClient, prom *PromMetrics, log logger.Logger) *Tracker {
	return &Tracker{
		client: client,
		keys:   NewRedisKeys(KeyPrefixMetrics),
		logger: log,
		prom:   prom,
	}
}

// increment bumps a counter key and refreshes its TTL in one pipeline.
func (t *Tracker) increment(ctx context.Context, key string, delta int64) error {
	ttl := MetricsTTLDays * HoursPerDay * time.Hour

	pipe := t.client.Pipeline()
	pipe.IncrBy(ctx, key, delta)
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		t.logger.Warn("Failed to increment counter",
			logger.String("redis_key", key),
			logger.Error(err),
		)
		return fmt.Errorf("increment counter %s: %w", key, err)
	}
	return nil
}

// IncrementSearches increments the dispatched-search counter
func (t *Tracker) IncrementSearches(ctx context.Context) error {
	if t.prom != nil {
		t.prom.SearchesDispatched.Inc()
	}
	return t.increment(ctx, t.keys.Searches(), 1)
}

// AddContacts adds to the extracted-contact counter
func (t *Tracker) AddContacts(ctx context.Context, count int) error {
	if count <= 0 {
		return nil
	}
	if t.prom != nil {
		t.prom.ContactsExtracted.Add(float64(count))
	}
	return t.increment(ctx, t.keys.Contacts(), int64(count))
}

// IncrementVerdict increments the counter for one validation verdict
func (t *Tracker) IncrementVerdict(ctx context.Context, verdict domain.Verdict) error {
	if t.prom != nil {
		t.prom.EmailsValidated.WithLabelValues(string(verdict)).Inc()
	}
	return t.increment(ctx, t.keys.Verdict(string(verdict)), 1)
}

// IncrementJobErrors increments the failed-job counter
func (t *Tracker) IncrementJobErrors(ctx context.Context) error {
	if t.prom != nil {
		t.prom.JobErrors.Inc()
	}
	return t.increment(ctx, t.keys.JobErrors(), 1)
}

// SetQueueDepth records the current pending-job count on the Prometheus
// gauge. Queue depth is live-process state, not a running counter, so it
// has no Redis mirror.
func (t *Tracker) SetQueueDepth(depth int64) {
	if t.prom != nil {
		t.prom.QueueDepth.Set(float64(depth))
	}
}

// GetStats returns aggregated statistics using a Redis pipeline for atomic reads
func (t *Tracker) GetStats(ctx context.Context) (*Stats, error) {
	pipe := t.client.Pipeline()

	searchesCmd := pipe.Get(ctx, t.keys.Searches())
	contactsCmd := pipe.Get(ctx, t.keys.Contacts())
	jobErrorsCmd := pipe.Get(ctx, t.keys.JobErrors())
	lastPassCmd := pipe.Get(ctx, KeyLastPass)

	verdictCmds := make(map[domain.Verdict]*redis.StringCmd, len(verdictNames))
	for _, verdict := range verdictNames {
		verdictCmds[verdict] = pipe.Get(ctx, t.keys.Verdict(string(verdict)))
	}

	if _, execErr := pipe.Exec(ctx); execErr != nil && !errors.Is(execErr, redis.Nil) {
		return nil, fmt.Errorf("execute pipeline: %w", execErr)
	}

	stats := &Stats{Verdicts: make(map[string]int64, len(verdictNames))}

	// Missing keys read as 0.
	if v, err := searchesCmd.Int64(); err == nil {
		stats.Searches = v
	}
	if v, err := contactsCmd.Int64(); err == nil {
		stats.Contacts = v
	}
	if v, err := jobErrorsCmd.Int64(); err == nil {
		stats.JobErrors = v
	}
	for _, verdict := range verdictNames {
		if v, err := verdictCmds[verdict].Int64(); err == nil {
			stats.Verdicts[string(verdict)] = v
		} else {
			stats.Verdicts[string(verdict)] = 0
		}
	}

	if lastPassStr, err := lastPassCmd.Result(); err == nil && lastPassStr != "" {
		if lastPass, parseErr := time.Parse(time.RFC3339, lastPassStr); parseErr == nil {
			stats.LastPass = lastPass
		}
	}

	return stats, nil
}

// UpdateLastPass updates the last scheduler pass timestamp
func (t *Tracker) UpdateLastPass(ctx context.Context) error {
	now := time.Now().Format(time.RFC3339)

	if err := t.client.Set(ctx, KeyLastPass, now, 0).Err(); err != nil {
		t.logger.Warn("Failed to update last pass timestamp",
			logger.Error(err),
		)
		return fmt.Errorf("update last pass: %w", err)
	}
	return nil
}
