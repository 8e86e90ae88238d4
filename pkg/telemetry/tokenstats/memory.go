package tokenstats

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps samples in memory. Samples are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []Sample
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores samples.
func (s *MemoryStore) Append(ctx context.Context, samples []Sample) error {
	if err := ctx.Err(); err != nil {
		return NewStorageError("memory", "append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NewStorageError("memory", "append", ErrClosed)
	}

	batchID := ""
	for _, sample := range samples {
		if sample.BatchID == "" {
			if batchID == "" {
				batchID = uuid.NewString()
			}
			sample.BatchID = batchID
		}
		s.samples = append(s.samples, sample)
	}
	return nil
}

// Samples returns matching samples ordered by time.
func (s *MemoryStore) Samples(ctx context.Context, filter Filter) ([]Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, NewStorageError("memory", "query", ErrClosed)
	}

	var out []Sample
	for _, sample := range s.samples {
		if filter.matches(sample) {
			out = append(out, sample)
		}
	}
	slices.SortStableFunc(out, func(a, b Sample) int {
		return a.RecordedAt.Compare(b.RecordedAt)
	})
	return out, nil
}

// Count returns the number of matching samples.
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, NewStorageError("memory", "count", ErrClosed)
	}

	var n int64
	for _, sample := range s.samples {
		if filter.matches(sample) {
			n++
		}
	}
	return n, nil
}

// Prune deletes samples recorded before cutoff.
func (s *MemoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, NewStorageError("memory", "prune", ErrClosed)
	}

	before := len(s.samples)
	s.samples = slices.DeleteFunc(s.samples, func(sample Sample) bool {
		return sample.RecordedAt.Before(cutoff)
	})
	return int64(before - len(s.samples)), nil
}

// Ping fails only after Close.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return NewStorageError("memory", "ping", ErrClosed)
	}
	return nil
}

// Close discards all samples.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.samples = nil
	return nil
}
