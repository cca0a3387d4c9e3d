// Package metrics provides Prometheus metrics for the fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OAuthAuthorizeTotal tracks authorization URL requests by outcome
	OAuthAuthorizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oauth",
			Name:      "authorize_total",
			Help:      "Total number of authorization URLs requested by outcome",
		},
		[]string{"outcome"},
	)

	// OAuthCallbacksTotal tracks callback outcomes; outcome is "success" or the redirect error code
	OAuthCallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oauth",
			Name:      "callbacks_total",
			Help:      "Total number of OAuth callbacks by outcome",
		},
		[]string{"outcome"},
	)

	// PagesProcessedTotal tracks per-page processing during the callback
	PagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "leadads",
			Name:      "pages_processed_total",
			Help:      "Total number of pages processed by webhook subscription and persistence result",
		},
		[]string{"subscribed", "persisted"},
	)

	// FormsListedTotal tracks form listings by outcome
	FormsListedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "leadads",
			Name:      "forms_listed_total",
			Help:      "Total number of lead form listings by outcome",
		},
		[]string{"outcome"},
	)

	// GraphRequestsTotal tracks outbound Graph API requests
	GraphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "graph_client",
			Name:      "requests_total",
			Help:      "Total number of outbound Graph API requests",
		},
		[]string{"operation", "status_code"},
	)

	// GraphRequestDuration tracks outbound Graph API request duration
	GraphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "graph_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound Graph API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	// EventsPublishedTotal tracks integration events written to Kafka
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "events_published_total",
			Help:      "Total number of integration events published by type and status",
		},
		[]string{"event_type", "status"},
	)

	// StateRejectedTotal tracks OAuth state tokens rejected by reason
	StateRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "oauth",
			Name:      "state_rejected_total",
			Help:      "Total number of OAuth state tokens rejected by reason",
		},
		[]string{"reason"},
	)
)
