package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromMetrics holds the Prometheus collectors mirrored alongside the Redis
// counters. Redis keeps the counters across restarts; Prometheus scrapes
// the live process.
type PromMetrics struct {
	registry           *prometheus.Registry
	SearchesDispatched prometheus.Counter
	ContactsExtracted  prometheus.Counter
	EmailsValidated    *prometheus.CounterVec
	JobErrors          prometheus.Counter
	QueueDepth         prometheus.Gauge
}

// NewPromMetrics creates and registers the collectors on a private registry.
func NewPromMetrics() *PromMetrics {
	registry := prometheus.NewRegistry()

	m := &PromMetrics{
		registry: registry,
		SearchesDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadharvest_searches_dispatched_total",
			Help: "Search API calls dispatched.",
		}),
		ContactsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadharvest_contacts_extracted_total",
			Help: "Contacts extracted from search results.",
		}),
		EmailsValidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadharvest_emails_validated_total",
			Help: "Emails validated, partitioned by verdict.",
		}, []string{"verdict"}),
		JobErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadharvest_job_errors_total",
			Help: "Search jobs that failed dispatch.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadharvest_pending_jobs",
			Help: "Pending search jobs across running batches.",
		}),
	}

	registry.MustRegister(
		m.SearchesDispatched,
		m.ContactsExtracted,
		m.EmailsValidated,
		m.JobErrors,
		m.QueueDepth,
	)
	return m
}

// Handler returns the scrape endpoint for the private registry.
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
