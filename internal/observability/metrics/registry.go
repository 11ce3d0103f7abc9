package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics track the media-request lifecycle.
var (
	// RequestsIngestedTotal counts ingestion calls by source and whether the request already existed.
	RequestsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_requests_ingested_total",
			Help: "Media requests ingested, by source type and dedup result",
		},
		[]string{"source", "result"}, // result: created, existing, rejected
	)

	// ProcessOutcomesTotal counts Process calls by final outcome.
	ProcessOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_process_outcomes_total",
			Help: "Processing runs by outcome",
		},
		[]string{"outcome"}, // posted, noop, failed, aborted
	)

	ProcessAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_process_attempts_total",
			Help: "Single processing attempts by result",
		},
		[]string{"result"}, // delivered, noop, ineligible, error
	)

	ProcessDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_process_duration_seconds",
			Help:    "Wall time of one Process call including backoff",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	FailuresRecordedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_processing_failures_recorded_total",
			Help: "Processing failure records appended",
		},
	)

	// ReconciledTotal counts stale requests re-enqueued by the worker sweep.
	ReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_reconciled_requests_total",
			Help: "Stale media requests re-published by reconciliation",
		},
		[]string{"result"}, // enqueued, collapsed, error
	)
)

// Delivery metrics track outbound posts.
var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Outbound delivery attempts by path and result",
		},
		[]string{"path", "result"}, // path: direct, event. result: sent, failed, suppressed, skipped
	)

	OutboundPendingPosts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_outbound_pending_posts",
			Help: "Outbound posts currently PENDING, refreshed by admin stats",
		},
	)
)

// Webhook metrics count change handling.
var (
	WebhookChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_webhook_changes_total",
			Help: "Webhook media changes by result",
		},
		[]string{"result"}, // processed, skipped, failed
	)

	WebhookSignatureFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for a bad X-Hub-Signature-256",
		},
	)
)

// Database metrics mirror sql.DBStats.
var (
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Database connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Idle database connections",
		},
	)
)
