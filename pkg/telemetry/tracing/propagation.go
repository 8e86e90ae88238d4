package tracing

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// propagator handles W3C Trace Context and W3C Baggage.
var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Extract returns ctx joined to the trace described by the request headers.
// If the headers carry no trace context, ctx is returned unchanged.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context from ctx into outgoing request headers.
//
//	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
//	tracing.Inject(ctx, req.Header)
func Inject(ctx context.Context, headers http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// HTTPMiddleware starts a server span for every request, joined to the
// caller's trace when the request carries one. The trace ID is echoed in
// the X-Trace-ID response header.
func (t *Tracer) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := Extract(r.Context(), r.Header)
		ctx, span := t.Start(ctx, fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Path),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(r.URL.Path),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.IsValid() {
			w.Header().Set("X-Trace-ID", sc.TraceID().String())
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r.WithContext(ctx))

		span.SetAttributes(semconv.HTTPStatusCodeKey.Int(sw.status))
		if sw.status >= http.StatusInternalServerError {
			SetStatus(span, fmt.Errorf("HTTP %d", sw.status))
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
