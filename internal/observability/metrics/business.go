package metrics

import (
	"database/sql"
	"time"

	"reel-relay/internal/domain/entity"
)

func RecordIngested(source entity.SourceType, alreadyExists bool) {
	result := "created"
	if alreadyExists {
		result = "existing"
	}
	RequestsIngestedTotal.WithLabelValues(string(source), result).Inc()
}

func RecordIngestRejected(source entity.SourceType) {
	RequestsIngestedTotal.WithLabelValues(string(source), "rejected").Inc()
}

func RecordProcessOutcome(outcome string, d time.Duration) {
	ProcessOutcomesTotal.WithLabelValues(outcome).Inc()
	ProcessDuration.Observe(d.Seconds())
}

func RecordAttempt(result string) {
	ProcessAttemptsTotal.WithLabelValues(result).Inc()
}

func RecordFailureRecorded() {
	FailuresRecordedTotal.Inc()
}

func RecordReconciled(result string) {
	ReconciledTotal.WithLabelValues(result).Inc()
}

func RecordDelivery(path, result string) {
	DeliveriesTotal.WithLabelValues(path, result).Inc()
}

func UpdateOutboundPending(n int64) {
	OutboundPendingPosts.Set(float64(n))
}

// RecordWebhookResult adds one batch of webhook counters.
func RecordWebhookResult(processed, skipped, failed int) {
	WebhookChangesTotal.WithLabelValues("processed").Add(float64(processed))
	WebhookChangesTotal.WithLabelValues("skipped").Add(float64(skipped))
	WebhookChangesTotal.WithLabelValues("failed").Add(float64(failed))
}

func RecordWebhookSignatureFailure() {
	WebhookSignatureFailuresTotal.Inc()
}

// UpdateDBStats copies the pool stats into the db gauges.
func UpdateDBStats(s sql.DBStats) {
	DBConnectionsInUse.Set(float64(s.InUse))
	DBConnectionsIdle.Set(float64(s.Idle))
}
