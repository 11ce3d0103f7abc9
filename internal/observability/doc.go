// Package observability groups the relay's logging, metrics and tracing
// subpackages.
//
// Subpackages:
//   - logging: slog setup and request-scoped loggers
//   - metrics: Prometheus collectors for HTTP, pipeline and Graph API calls
//   - tracing: OpenTelemetry provider and HTTP span middleware
package observability
