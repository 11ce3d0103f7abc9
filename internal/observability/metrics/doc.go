// Package metrics holds the relay's pipeline, delivery and webhook metrics.
//
// All collectors register with the Prometheus default registry and are
// exposed on /metrics. HTTP request metrics live next to the middleware in
// internal/handler/http.
//
//	metrics.RecordIngested(entity.SourceTypeLink, alreadyExists)
//	metrics.RecordProcessOutcome("posted", time.Since(start))
package metrics
