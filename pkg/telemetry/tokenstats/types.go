package tokenstats

import (
	"context"
	"time"

	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

// Sample is one raw token count from one side of an LLM call.
type Sample struct {
	// BatchID groups samples written by the same flush.
	BatchID    string
	Provider   string
	Model      string
	Scope      metrics.Scope
	Direction  metrics.TokenDirection
	Tokens     int
	RecordedAt time.Time
}

// Key identifies the series a sample belongs to.
type Key struct {
	Provider  string                 `json:"provider,omitempty"`
	Model     string                 `json:"model,omitempty"`
	Scope     metrics.Scope          `json:"scope,omitempty"`
	Direction metrics.TokenDirection `json:"direction,omitempty"`
}

// Key returns the series key of s.
func (s Sample) Key() Key {
	return Key{Provider: s.Provider, Model: s.Model, Scope: s.Scope, Direction: s.Direction}
}

// Filter selects samples. Zero fields match everything. Since is
// inclusive and Until exclusive.
type Filter struct {
	Provider  string
	Model     string
	Scope     metrics.Scope
	Direction metrics.TokenDirection
	Since     time.Time
	Until     time.Time
}

func (f Filter) matches(s Sample) bool {
	switch {
	case f.Provider != "" && s.Provider != f.Provider:
		return false
	case f.Model != "" && s.Model != f.Model:
		return false
	case f.Scope != "" && s.Scope != f.Scope:
		return false
	case f.Direction != "" && s.Direction != f.Direction:
		return false
	case !f.Since.IsZero() && s.RecordedAt.Before(f.Since):
		return false
	case !f.Until.IsZero() && !s.RecordedAt.Before(f.Until):
		return false
	}
	return true
}

// Store persists token samples.
type Store interface {
	// Append stores samples atomically. Samples without a BatchID share a
	// newly generated one.
	Append(ctx context.Context, samples []Sample) error

	// Samples returns matching samples ordered by time.
	Samples(ctx context.Context, filter Filter) ([]Sample, error)

	// Count returns the number of matching samples.
	Count(ctx context.Context, filter Filter) (int64, error)

	// Prune deletes samples recorded before cutoff and returns how many
	// were deleted.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping reports whether the store is usable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
