// Package telemetry groups the observability packages of hindsight.
//
// # Components
//
//   - logging: structured slog logging with context fields and redaction
//   - metrics: the metrics registry, token bucketing and the memory
//     operation and LLM call instrumentation behind /metrics
//   - tracing: OpenTelemetry spans for operations and LLM calls
//   - health: liveness and readiness probes
//   - tokenstats: sampled raw token counts for reviewing bucket boundaries
//
// Every component is built once at startup in cmd/hindsight and passed to
// its consumers explicitly. The only process-wide state is the OpenTelemetry
// tracer provider and propagator that tracing installs.
package telemetry
