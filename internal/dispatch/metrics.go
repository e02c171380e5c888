package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatcher metrics.
var (
	// interactionsTotal counts handled interactions by kind and outcome.
	interactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockbot_interactions_total",
			Help: "Interactions handled by the dispatcher",
		},
		[]string{"kind", "outcome"},
	)

	// interactionDuration measures end-to-end handling time, bridge calls included.
	interactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lockbot_interaction_duration_seconds",
			Help:    "Time spent handling one interaction",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// bridgeRequestsTotal counts bridge calls by operation and result.
	bridgeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockbot_bridge_requests_total",
			Help: "Lock bridge calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	// bridgeRequestDuration measures bridge round trips.
	bridgeRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lockbot_bridge_request_duration_seconds",
			Help:    "Lock bridge round trip time",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"operation"},
	)

	// confirmationsTotal counts resolved open-door confirmations.
	confirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockbot_confirmations_total",
			Help: "Open-door confirmations by decision",
		},
		[]string{"decision"},
	)
)

// Interaction outcomes used as metric labels.
const (
	outcomeOK      = "ok"
	outcomeRefused = "refused"
	outcomeUnknown = "unknown"
	outcomeInvalid = "invalid"
)
