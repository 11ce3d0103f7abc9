// Package tracing provides the OpenTelemetry setup for the relay.
//
// InitProvider installs the SDK provider (enabled with OTEL_ENABLED=true).
// Start and Fail are used by the HTTP server middleware, the processing
// pipeline, the delivery subscriber and the Graph API client. No exporter is
// wired; callers pass span processors as ProviderOptions.
//
//	shutdown := tracing.InitProvider(cfg.SampleRatio)
//	defer func() { _ = shutdown(context.Background()) }()
//
//	ctx, span := tracing.Start(ctx, "process.attempt", attribute.Int("attempt", n))
//	defer span.End()
package tracing
