package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const testTraceParent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestExtractInject(t *testing.T) {
	headers := http.Header{}
	headers.Set("traceparent", testTraceParent)

	ctx := Extract(context.Background(), headers)
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsRemote() {
		t.Fatalf("extracted span context = %+v, want valid remote", sc)
	}
	if sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace id = %s", sc.TraceID())
	}

	out := http.Header{}
	Inject(ctx, out)
	if got := out.Get("traceparent"); got != testTraceParent {
		t.Errorf("injected traceparent = %q, want %q", got, testTraceParent)
	}
}

func TestExtract_NoHeaders(t *testing.T) {
	ctx := Extract(context.Background(), http.Header{})
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("extracted a span context from empty headers")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	var handlerTraceID string
	handler := tracer.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerTraceID = TraceID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("traceparent", testTraceParent)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if handlerTraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("handler trace id = %q, want caller's trace", handlerTraceID)
	}
	if got := rec.Header().Get("X-Trace-ID"); got != handlerTraceID {
		t.Errorf("X-Trace-ID = %q", got)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	span := spans[0]
	if span.Name() != "HTTP GET /metrics" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.SpanKind() != trace.SpanKindServer {
		t.Errorf("span kind = %v", span.SpanKind())
	}
	if span.Parent().SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("parent span id = %s", span.Parent().SpanID())
	}
	if v, ok := attrValue(span.Attributes(), "http.status_code"); !ok || v.AsInt64() != http.StatusTeapot {
		t.Errorf("http.status_code = %v", v)
	}
}

func TestHTTPMiddleware_ServerError(t *testing.T) {
	tracer, recorder := newRecordingTracer(t)

	handler := tracer.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	spans := recorder.Ended()
	if len(spans) != 1 || spans[0].Status().Code != codes.Error {
		t.Fatalf("spans = %v, want one error span", spans)
	}
	if spans[0].Parent().IsValid() {
		t.Error("request without traceparent should start a new trace")
	}
}
