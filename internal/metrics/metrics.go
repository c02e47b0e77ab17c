// Package metrics exposes Prometheus collectors for the reconciliation
// subsystem. Collectors are package-level and registered on the default
// registry; the /metrics endpoint serves them via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cappychat"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Webhook metrics
var (
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Total number of subscription webhook events received",
		},
		[]string{"event_type", "outcome"}, // outcome: "applied", "skipped", "error"
	)
)

// Sweep metrics
var (
	SweepRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Total number of bulk sweep invocations",
		},
		[]string{"kind", "outcome"}, // kind: "reset", "logout"; outcome: "completed", "timeout", "conflict"
	)

	SweepUsersChecked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_users_checked_total",
			Help:      "Total number of users examined by bulk sweeps",
		},
		[]string{"kind"},
	)

	SweepUsersChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_users_changed_total",
			Help:      "Total number of users mutated by bulk sweeps",
		},
		[]string{"kind"},
	)

	SweepErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_errors_total",
			Help:      "Total number of per-user failures during bulk sweeps",
		},
		[]string{"kind"},
	)

	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Bulk sweep execution time distribution",
			Buckets:   []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"kind"},
	)
)

// Store metrics
var (
	StoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Total number of preference store operation failures",
		},
		[]string{"operation"},
	)
)
