package tracing

import (
	"context"
	"fmt"

	"hindsight-hq/hindsight/pkg/telemetry/logging"
	"hindsight-hq/hindsight/pkg/telemetry/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. They mirror the metric labels so a slow bucket in a
// dashboard can be matched to its traces.
const (
	AttrOperation    = "hindsight.operation"
	AttrBankID       = "hindsight.bank_id"
	AttrSource       = "hindsight.source"
	AttrBudget       = "hindsight.budget"
	AttrMaxTokens    = "hindsight.max_tokens"
	AttrProvider     = "hindsight.llm.provider"
	AttrModel        = "hindsight.llm.model"
	AttrScope        = "hindsight.llm.scope"
	AttrTokensInput  = "hindsight.llm.tokens.input"
	AttrTokensOutput = "hindsight.llm.tokens.output"
)

// OperationAttributes returns the span attributes for a memory operation.
// Unset budget and max tokens are omitted.
func OperationAttributes(info metrics.OperationInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrOperation, string(info.Operation)),
		attribute.String(AttrBankID, info.BankID),
		attribute.String(AttrSource, string(info.Source)),
	}
	if info.Budget != metrics.BudgetNone {
		attrs = append(attrs, attribute.String(AttrBudget, string(info.Budget)))
	}
	if info.MaxTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrMaxTokens, info.MaxTokens))
	}
	return attrs
}

// MeasureOperation runs fn inside a span named after the operation and, if
// in is non-nil, inside an operation measurement. The context passed to fn
// carries the span plus the bank and operation for log correlation.
//
// An error or panic from fn marks both the span and the metrics as failed.
// A panic is re-raised after both are recorded.
func (t *Tracer) MeasureOperation(ctx context.Context, in *metrics.Instrumentation, info metrics.OperationInfo, fn func(context.Context) error) (err error) {
	ctx = logging.WithOperation(ctx, string(info.Operation))
	if info.BankID != "" {
		ctx = logging.WithBankID(ctx, info.BankID)
	}

	ctx, span := t.Start(ctx, "memory."+string(info.Operation),
		trace.WithAttributes(OperationAttributes(info)...),
	)
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, fmt.Sprint("panic: ", r))
			span.End()
			panic(r)
		}
		SetError(span, err)
		SetStatus(span, err)
		span.End()
	}()

	if in == nil {
		return fn(ctx)
	}
	return in.MeasureOperation(info, func() error { return fn(ctx) })
}

// LLMSpan is an in-flight LLM call with its span and measurement.
type LLMSpan struct {
	span        trace.Span
	measurement *metrics.LLMMeasurement
}

// StartLLMCall starts a client span for an LLM call and, if in is non-nil,
// its measurement. End must be called exactly once.
func (t *Tracer) StartLLMCall(ctx context.Context, in *metrics.Instrumentation, provider, model string, scope metrics.Scope) (context.Context, *LLMSpan) {
	ctx, span := t.Start(ctx, "llm."+string(scope),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrProvider, provider),
			attribute.String(AttrModel, model),
			attribute.String(AttrScope, string(scope)),
		),
	)

	s := &LLMSpan{span: span}
	if in != nil {
		s.measurement = in.BeginLLMCall(provider, model, scope)
	}
	return ctx, s
}

// End records token usage and the outcome, then ends the span.
func (s *LLMSpan) End(inputTokens, outputTokens int, err error) {
	s.span.SetAttributes(
		attribute.Int(AttrTokensInput, inputTokens),
		attribute.Int(AttrTokensOutput, outputTokens),
	)
	SetError(s.span, err)
	SetStatus(s.span, err)
	s.span.End()

	if s.measurement != nil {
		s.measurement.End(inputTokens, outputTokens, err == nil)
	}
}
