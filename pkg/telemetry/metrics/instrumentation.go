package metrics

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Metric names. These and their label sets are consumed by dashboards and
// alerts and must not change.
const (
	MetricOperationDuration = "hindsight.operation.duration"
	MetricOperationTotal    = "hindsight.operation.total"
	MetricLLMDuration       = "hindsight.llm.duration"
	MetricLLMCallsTotal     = "hindsight.llm.calls.total"
	MetricLLMTokensInput    = "hindsight.llm.tokens.input"
	MetricLLMTokensOutput   = "hindsight.llm.tokens.output"
)

var (
	// OperationDurationBuckets are the histogram bounds for operation latency in seconds.
	OperationDurationBuckets = []float64{0.1, 0.25, 0.5, 0.75, 1.0, 2.0, 3.0, 5.0, 7.5, 10.0, 15.0, 20.0, 30.0, 60.0, 120.0}

	// LLMDurationBuckets are the histogram bounds for LLM call latency in seconds.
	LLMDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 3.0, 5.0, 10.0, 15.0, 30.0, 60.0, 120.0}

	operationLabels = []string{LabelOperation, LabelBankID, LabelSource, LabelBudget, LabelMaxTokens, LabelSuccess}
	llmLabels       = []string{LabelProvider, LabelModel, LabelScope, LabelSuccess}
	llmTokenLabels  = []string{LabelProvider, LabelModel, LabelScope, LabelSuccess, LabelTokenBucket}
)

// limiter family keys
const (
	familyOperation = "operation"
	familyLLM       = "llm"
)

const unknownLabelValue = "unknown"

// Descriptors returns the six hindsight metric families.
func Descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:       MetricOperationDuration,
			Help:       "Duration of memory operations in seconds.",
			Kind:       KindHistogram,
			LabelNames: operationLabels,
			Buckets:    OperationDurationBuckets,
		},
		{
			Name:       MetricOperationTotal,
			Help:       "Total number of memory operations.",
			Kind:       KindCounter,
			LabelNames: operationLabels,
		},
		{
			Name:       MetricLLMDuration,
			Help:       "Duration of LLM calls in seconds.",
			Kind:       KindHistogram,
			LabelNames: llmLabels,
			Buckets:    LLMDurationBuckets,
		},
		{
			Name:       MetricLLMCallsTotal,
			Help:       "Total number of LLM calls.",
			Kind:       KindCounter,
			LabelNames: llmLabels,
		},
		{
			Name:       MetricLLMTokensInput,
			Help:       "Total number of input tokens sent to LLMs.",
			Kind:       KindCounter,
			LabelNames: llmTokenLabels,
		},
		{
			Name:       MetricLLMTokensOutput,
			Help:       "Total number of output tokens received from LLMs.",
			Kind:       KindCounter,
			LabelNames: llmTokenLabels,
		},
	}
}

// TokenObservation is a raw token count seen on one LLM call.
type TokenObservation struct {
	Provider  string
	Model     string
	Scope     Scope
	Direction TokenDirection
	Tokens    int
	At        time.Time
}

// TokenObserver receives raw token counts, e.g. to review bucket boundaries
// against real traffic. ObserveTokens must not block.
type TokenObserver interface {
	ObserveTokens(obs TokenObservation)
}

// Instrumentation is what operation and LLM call sites use to record work.
// It resolves label values and writes into the Registry; all series state
// stays in the Registry.
type Instrumentation struct {
	registry *Registry

	opDuration   *Handle
	opTotal      *Handle
	llmDuration  *Handle
	llmCalls     *Handle
	llmTokensIn  *Handle
	llmTokensOut *Handle

	buckets  *TokenBuckets
	limiter  *CardinalityLimiter
	observer TokenObserver
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Instrumentation.
type Option func(*Instrumentation)

// WithTokenBuckets replaces the default token_bucket ranges.
func WithTokenBuckets(tb *TokenBuckets) Option {
	return func(in *Instrumentation) {
		if tb != nil {
			in.buckets = tb
		}
	}
}

// WithMaxLabelValues caps distinct values of free-form labels per family.
// Zero or negative disables the cap.
func WithMaxLabelValues(n int) Option {
	return func(in *Instrumentation) {
		in.limiter = NewCardinalityLimiter(n)
	}
}

// WithTokenObserver forwards raw token counts of every LLM call to obs.
func WithTokenObserver(obs TokenObserver) Option {
	return func(in *Instrumentation) {
		in.observer = obs
	}
}

// WithLogger sets the logger used to report misuse.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Instrumentation) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(in *Instrumentation) {
		if now != nil {
			in.now = now
		}
	}
}

// NewInstrumentation registers the hindsight families with reg. An error
// means the registry already holds an incompatible definition and the
// process should not start.
func NewInstrumentation(reg *Registry, opts ...Option) (*Instrumentation, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry is required")
	}

	in := &Instrumentation{
		registry: reg,
		buckets:  DefaultTokenBuckets(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.With("component", "metrics.instrumentation")

	handles := make(map[string]*Handle, 6)
	for _, d := range Descriptors() {
		h, err := reg.Register(d)
		if err != nil {
			return nil, err
		}
		handles[d.Name] = h
	}

	in.opDuration = handles[MetricOperationDuration]
	in.opTotal = handles[MetricOperationTotal]
	in.llmDuration = handles[MetricLLMDuration]
	in.llmCalls = handles[MetricLLMCallsTotal]
	in.llmTokensIn = handles[MetricLLMTokensInput]
	in.llmTokensOut = handles[MetricLLMTokensOutput]

	return in, nil
}

// TokenBuckets returns the ranges used for the token_bucket label.
func (in *Instrumentation) TokenBuckets() *TokenBuckets {
	return in.buckets
}

// OperationInfo identifies a memory operation. MaxTokens <= 0 means the
// caller did not set a token limit.
type OperationInfo struct {
	Operation Operation
	BankID    string
	Source    Source
	Budget    Budget
	MaxTokens int
}

// OperationMeasurement is an in-flight operation. End records it.
type OperationMeasurement struct {
	in     *Instrumentation
	labels Labels
	start  time.Time
	ended  atomic.Bool
}

// BeginOperation starts timing an operation. Call End on every exit path;
// only the first End is recorded.
//
//	m := in.BeginOperation(info)
//	defer func() { m.End(err == nil) }()
func (in *Instrumentation) BeginOperation(info OperationInfo) *OperationMeasurement {
	m := &OperationMeasurement{in: in, start: in.now()}

	if err := info.validate(); err != nil {
		in.logger.Error("invalid operation labels, measurement dropped",
			"error", err,
			"operation", string(info.Operation),
			"source", string(info.Source),
			"budget", string(info.Budget),
		)
		m.ended.Store(true)
		return m
	}

	// Unset max tokens is exported empty and takes no limiter slot.
	maxTokens := ""
	if info.MaxTokens > 0 {
		maxTokens = in.limiter.Admit(familyOperation, LabelMaxTokens, strconv.Itoa(info.MaxTokens))
	}

	m.labels = Labels{
		LabelOperation: string(info.Operation),
		LabelBankID:    in.limiter.Admit(familyOperation, LabelBankID, orUnknown(info.BankID)),
		LabelSource:    string(info.Source),
		LabelBudget:    string(info.Budget),
		LabelMaxTokens: maxTokens,
	}
	return m
}

// End records the operation with the given outcome: one observation of the
// elapsed seconds and one counter increment. It returns false, recording
// nothing, if the measurement was already ended or its labels were invalid.
func (m *OperationMeasurement) End(success bool) bool {
	if m == nil || !m.ended.CompareAndSwap(false, true) {
		return false
	}
	in := m.in

	labels := make(Labels, len(m.labels)+1)
	for k, v := range m.labels {
		labels[k] = v
	}
	labels[LabelSuccess] = successValue(success)

	elapsed := in.now().Sub(m.start).Seconds()
	in.observe(in.opDuration, labels, elapsed)
	in.increment(in.opTotal, labels, 1)
	return true
}

// Elapsed returns the time since the measurement began.
func (m *OperationMeasurement) Elapsed() time.Duration {
	return m.in.now().Sub(m.start)
}

// MeasureOperation runs fn inside an operation measurement. A returned
// error or a panic is recorded as success=false; the panic is re-raised.
func (in *Instrumentation) MeasureOperation(info OperationInfo, fn func() error) (err error) {
	m := in.BeginOperation(info)
	defer func() {
		if r := recover(); r != nil {
			m.End(false)
			panic(r)
		}
		m.End(err == nil)
	}()
	return fn()
}

func (info OperationInfo) validate() error {
	if !info.Operation.Valid() {
		return fmt.Errorf("%w: operation %q", ErrInvalidValue, info.Operation)
	}
	if !info.Source.Valid() {
		return fmt.Errorf("%w: source %q", ErrInvalidValue, info.Source)
	}
	if !info.Budget.Valid() {
		return fmt.Errorf("%w: budget %q", ErrInvalidValue, info.Budget)
	}
	return nil
}

// LLMCall describes one completed LLM call.
type LLMCall struct {
	Provider     string
	Model        string
	Scope        Scope
	Duration     time.Duration
	InputTokens  int
	OutputTokens int
	Success      bool
}

// RecordLLMCall records a call whose total duration the caller already knows.
func (in *Instrumentation) RecordLLMCall(call LLMCall) {
	if !call.Scope.Valid() {
		in.logger.Error("invalid llm scope, call not recorded",
			"error", fmt.Errorf("%w: scope %q", ErrInvalidValue, call.Scope),
			"provider", call.Provider,
			"model", call.Model,
		)
		return
	}

	provider := in.limiter.Admit(familyLLM, LabelProvider, normalizeProvider(call.Provider))
	model := in.limiter.Admit(familyLLM, LabelModel, orUnknown(strings.TrimSpace(call.Model)))
	inputTokens := max(call.InputTokens, 0)
	outputTokens := max(call.OutputTokens, 0)

	labels := Labels{
		LabelProvider: provider,
		LabelModel:    model,
		LabelScope:    string(call.Scope),
		LabelSuccess:  successValue(call.Success),
	}
	in.observe(in.llmDuration, labels, call.Duration.Seconds())
	in.increment(in.llmCalls, labels, 1)

	in.increment(in.llmTokensIn, withTokenBucket(labels, in.buckets.Bucket(inputTokens)), float64(inputTokens))
	in.increment(in.llmTokensOut, withTokenBucket(labels, in.buckets.Bucket(outputTokens)), float64(outputTokens))

	if in.observer != nil {
		at := in.now()
		in.observer.ObserveTokens(TokenObservation{
			Provider: provider, Model: model, Scope: call.Scope,
			Direction: DirectionInput, Tokens: inputTokens, At: at,
		})
		in.observer.ObserveTokens(TokenObservation{
			Provider: provider, Model: model, Scope: call.Scope,
			Direction: DirectionOutput, Tokens: outputTokens, At: at,
		})
	}
}

// LLMMeasurement is an in-flight LLM call. End records it.
type LLMMeasurement struct {
	in       *Instrumentation
	provider string
	model    string
	scope    Scope
	start    time.Time
	ended    atomic.Bool
}

// BeginLLMCall starts timing an LLM call.
func (in *Instrumentation) BeginLLMCall(provider, model string, scope Scope) *LLMMeasurement {
	return &LLMMeasurement{
		in:       in,
		provider: provider,
		model:    model,
		scope:    scope,
		start:    in.now(),
	}
}

// End records the call with its token usage. Only the first End counts.
func (m *LLMMeasurement) End(inputTokens, outputTokens int, success bool) bool {
	if m == nil || !m.ended.CompareAndSwap(false, true) {
		return false
	}
	m.in.RecordLLMCall(LLMCall{
		Provider:     m.provider,
		Model:        m.model,
		Scope:        m.scope,
		Duration:     m.in.now().Sub(m.start),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Success:      success,
	})
	return true
}

func (in *Instrumentation) observe(h *Handle, labels Labels, value float64) {
	if err := in.registry.ObserveHistogram(h, labels, value); err != nil {
		in.logger.Error("metric observation dropped", "error", err, "labels", labels)
	}
}

func (in *Instrumentation) increment(h *Handle, labels Labels, delta float64) {
	if err := in.registry.IncrementCounter(h, labels, delta); err != nil {
		in.logger.Error("metric increment dropped", "error", err, "labels", labels)
	}
}

func withTokenBucket(labels Labels, bucket string) Labels {
	out := make(Labels, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[LabelTokenBucket] = bucket
	return out
}

func normalizeProvider(provider string) string {
	return orUnknown(strings.ToLower(strings.TrimSpace(provider)))
}

func orUnknown(v string) string {
	if v == "" {
		return unknownLabelValue
	}
	return v
}
