// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline, engagement tracker, job scheduler, and API surface.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Item store metrics.
	ItemsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_items_ingested_total",
			Help: "Items successfully inserted, labeled by provider and zone.",
		},
		[]string{"provider", "zone_id"},
	)

	ItemsDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_items_duplicate_total",
			Help: "Items that resolved to an existing (provider, provider_item_id).",
		},
		[]string{"provider"},
	)

	ItemsParseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_items_parse_errors_total",
			Help: "Items dropped due to a provider adapter parse error.",
		},
		[]string{"provider"},
	)

	// Job scheduler metrics.
	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_jobs_enqueued_total",
			Help: "Jobs enqueued, labeled by topic.",
		},
		[]string{"topic"},
	)

	JobsDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_jobs_dispatched_total",
			Help: "Jobs leased and dispatched to a handler.",
		},
		[]string{"topic"},
	)

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_jobs_failed_total",
			Help: "Jobs that exhausted max_attempts and moved to the dead-letter table.",
		},
		[]string{"topic"},
	)

	JobsRetriedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_jobs_retried_total",
			Help: "Job attempts that failed and were rescheduled with backoff.",
		},
		[]string{"topic"},
	)

	JobQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gorgone_job_queue_depth",
			Help: "Current count of pending jobs, labeled by topic.",
		},
		[]string{"topic"},
	)

	JobHandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gorgone_job_handler_duration_seconds",
			Help:    "Duration of a topic handler invocation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	// Engagement tracker metrics.
	TierTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_tier_transitions_total",
			Help: "Tracking tier transitions, labeled by from and to tier.",
		},
		[]string{"from", "to"},
	)

	SnapshotsAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_snapshots_appended_total",
			Help: "Engagement snapshots appended, labeled by tier at append time.",
		},
		[]string{"tier"},
	)

	// Embedding cache metrics.
	EmbeddingCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gorgone_embedding_cache_hits_total",
			Help: "Embedding lookups that hit the content-hash cache.",
		},
	)

	EmbeddingCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gorgone_embedding_cache_misses_total",
			Help: "Embedding lookups that required a provider request.",
		},
	)

	// Provider adapter metrics.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gorgone_circuit_breaker_state",
			Help: "Circuit breaker state per provider: 0=closed, 1=half-open, 2=open.",
		},
		[]string{"provider"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions.",
		},
		[]string{"provider", "from", "to"},
	)

	RateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gorgone_rate_limiter_wait_seconds",
			Help:    "Time spent waiting for a rate-limiter token before an outbound call.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_provider_requests_total",
			Help: "Outbound provider requests, labeled by provider and result.",
		},
		[]string{"provider", "result"},
	)

	// API metrics.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gorgone_api_requests_total",
			Help: "Total HTTP requests, labeled by method, route, and status code.",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gorgone_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	activeRequests atomic.Int64

	//nolint:unused // retained as a GaugeFunc registration side effect
	apiActiveRequests = promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gorgone_api_active_requests",
			Help: "Number of in-flight HTTP requests.",
		},
		func() float64 { return float64(activeRequests.Load()) },
	)
)

// TrackActiveRequest increments or decrements the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		activeRequests.Add(1)
		return
	}
	activeRequests.Add(-1)
}

// RecordAPIRequest records the outcome of one HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordJobDispatch records a successful lease+dispatch of a job.
func RecordJobDispatch(topic string, duration time.Duration) {
	JobsDispatchedTotal.WithLabelValues(topic).Inc()
	JobHandlerDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

// RecordTierTransition records a tracking-tier change.
func RecordTierTransition(from, to string) {
	TierTransitionsTotal.WithLabelValues(from, to).Inc()
}
