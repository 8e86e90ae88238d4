// Package tracing provides OpenTelemetry tracing for hindsight memory
// operations and LLM calls.
//
// Spans are exported over OTLP/gRPC. When tracing is disabled a no-op
// tracer is used and span creation costs almost nothing, so callers never
// need to check Enabled before starting a span.
//
// # Trace Context Propagation
//
// Incoming HTTP requests are joined to their caller's trace using W3C Trace
// Context and Baggage headers:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// # Sampling
//
// Three sampling strategies are supported, each wrapped in ParentBased so a
// sampled parent always yields sampled children:
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of new traces by trace ID
//
// # Usage
//
//	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	err = tracer.MeasureOperation(ctx, inst, metrics.OperationInfo{
//	    Operation: metrics.OperationRecall,
//	    BankID:    bankID,
//	    Source:    metrics.SourceAPI,
//	}, func(ctx context.Context) error {
//	    return recall(ctx, query)
//	})
//
// MeasureOperation records the span and the operation metrics together, so
// a failed recall shows up as success="false" in Prometheus and as an error
// span in the trace backend.
package tracing
