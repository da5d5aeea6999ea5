package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels shared by the counters below.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "conflict"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
	OutcomeStale     = "stale"
	OutcomeIgnored   = "ignored"
)

var (
	QuoteSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteajob_quote_submissions_total",
			Help: "Total number of quote submissions by outcome",
		},
		[]string{"outcome"},
	)

	QuoteClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteajob_quote_classifications_total",
			Help: "Total number of quote status writes by resulting status",
		},
		[]string{"status"},
	)

	RecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quoteajob_job_recompute_duration_seconds",
			Help:    "Duration of the per-job quote recompute unit of work in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	ProfileRescores = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteajob_profile_rescores_total",
			Help: "Total number of profile derived score recomputes by trigger",
		},
		[]string{"trigger"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteajob_webhook_events_total",
			Help: "Total number of payment webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quoteajob_tasks_processed_total",
			Help: "Total number of background tasks processed by type and outcome",
		},
		[]string{"task_type", "outcome"},
	)
)
