package tokenstats

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

func observation(tokens int) metrics.TokenObservation {
	return metrics.TokenObservation{
		Provider:  "openai",
		Model:     "gpt-4o",
		Scope:     metrics.ScopeAnswer,
		Direction: metrics.DirectionOutput,
		Tokens:    tokens,
		At:        baseTime,
	}
}

// blockingStore blocks every Append until release is closed.
type blockingStore struct {
	*MemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, samples []Sample) error {
	<-s.release
	return s.MemoryStore.Append(ctx, samples)
}

type failingStore struct{ *MemoryStore }

func (failingStore) Append(context.Context, []Sample) error {
	return NewStorageError("memory", "append", errors.New("disk full"))
}

func TestSampler_FlushOnClose(t *testing.T) {
	store := NewMemoryStore()
	s := NewSampler(store, SamplerConfig{SampleRate: 1, FlushInterval: time.Hour}, discardLogger())

	for i := range 10 {
		s.ObserveTokens(observation(i * 100))
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	samples, _ := store.Samples(context.Background(), Filter{})
	if len(samples) != 10 {
		t.Fatalf("stored %d samples, want 10", len(samples))
	}
	got := samples[3]
	if got.Provider != "openai" || got.Scope != metrics.ScopeAnswer || got.Direction != metrics.DirectionOutput {
		t.Errorf("sample = %+v", got)
	}

	stats := s.Stats()
	if stats.Observed != 10 || stats.Sampled != 10 || stats.Stored != 10 || stats.Dropped != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSampler_BatchSize(t *testing.T) {
	store := NewMemoryStore()
	s := NewSampler(store, SamplerConfig{SampleRate: 1, BatchSize: 3, FlushInterval: time.Hour}, discardLogger())
	defer s.Close()

	for range 7 {
		s.ObserveTokens(observation(50))
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	samples, _ := store.Samples(context.Background(), Filter{})
	if len(samples) != 7 {
		t.Fatalf("stored %d samples, want 7", len(samples))
	}
	batches := map[string]int{}
	for _, sample := range samples {
		batches[sample.BatchID]++
	}
	sizes := make([]int, 0, len(batches))
	for _, n := range batches {
		sizes = append(sizes, n)
	}
	slices.Sort(sizes)
	if !slices.Equal(sizes, []int{1, 3, 3}) {
		t.Errorf("batch sizes = %v, want [1 3 3]", sizes)
	}
}

func TestSampler_FlushDoesNotBlockObservers(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	s := NewSampler(store, SamplerConfig{SampleRate: 1, BatchSize: 1, FlushInterval: time.Hour}, discardLogger())

	// The writer takes the first sample and blocks in Append.
	s.ObserveTokens(observation(1))
	deadline := time.Now().Add(time.Second)
	for len(s.samples) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	flushed := make(chan error, 1)
	go func() { flushed <- s.Flush(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	time.Sleep(20 * time.Millisecond)

	observed := make(chan struct{})
	go func() {
		s.ObserveTokens(observation(2))
		close(observed)
	}()
	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Error("ObserveTokens blocked behind a pending Flush and Close")
	}

	close(store.release)
	select {
	case err := <-flushed:
		if err != nil && !errors.Is(err, ErrClosed) {
			t.Errorf("Flush() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Flush did not return after the writer exited")
	}
	<-closed
	if got := s.Stats().Stored; got != 1 {
		t.Errorf("stored = %d, want 1", got)
	}
}

func TestSampler_FlushInterval(t *testing.T) {
	store := NewMemoryStore()
	s := NewSampler(store, SamplerConfig{SampleRate: 1, FlushInterval: 20 * time.Millisecond}, discardLogger())
	defer s.Close()

	s.ObserveTokens(observation(42))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if n, _ := store.Count(context.Background(), Filter{}); n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("sample was not written by the flush ticker")
}

func TestSampler_SampleRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		draw float64
		want uint64
	}{
		{"keep all", 1, 0.99, 5},
		{"keep none", 0, 0, 0},
		{"draw below rate", 0.5, 0.25, 5},
		{"draw at rate", 0.5, 0.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSampler(NewMemoryStore(), SamplerConfig{SampleRate: tt.rate}, discardLogger())
			s.random = func() float64 { return tt.draw }
			defer s.Close()

			for range 5 {
				s.ObserveTokens(observation(1))
			}
			stats := s.Stats()
			if stats.Observed != 5 || stats.Sampled != tt.want {
				t.Errorf("stats = %+v, want %d sampled", stats, tt.want)
			}
		})
	}
}

func TestSampler_DropsWhenFull(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore(), release: make(chan struct{})}
	s := NewSampler(store, SamplerConfig{SampleRate: 1, BufferSize: 2, BatchSize: 1, FlushInterval: time.Hour}, discardLogger())

	// The first sample is taken by the writer, which then blocks in Append.
	s.ObserveTokens(observation(1))
	deadline := time.Now().Add(time.Second)
	for len(s.samples) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		for range 10 {
			s.ObserveTokens(observation(1))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ObserveTokens blocked on a full buffer")
	}

	if got := s.Stats().Dropped; got != 8 {
		t.Errorf("dropped = %d, want 8", got)
	}

	close(store.release)
	s.Close()
	if got := s.Stats().Stored; got != 3 {
		t.Errorf("stored = %d, want 3", got)
	}
}

func TestSampler_StoreFailure(t *testing.T) {
	s := NewSampler(failingStore{NewMemoryStore()}, SamplerConfig{SampleRate: 1}, discardLogger())
	s.ObserveTokens(observation(1))
	s.ObserveTokens(observation(2))
	s.Close()

	stats := s.Stats()
	if stats.Failed != 2 || stats.Stored != 0 {
		t.Errorf("stats = %+v, want 2 failed", stats)
	}
}

func TestSampler_AfterClose(t *testing.T) {
	s := NewSampler(NewMemoryStore(), SamplerConfig{SampleRate: 1}, discardLogger())
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	s.ObserveTokens(observation(1))
	if got := s.Stats().Dropped; got != 1 {
		t.Errorf("dropped = %d, want 1", got)
	}
	if err := s.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush() error = %v, want ErrClosed", err)
	}
}

func TestSampler_ConcurrentObserveAndClose(t *testing.T) {
	s := NewSampler(NewMemoryStore(), SamplerConfig{SampleRate: 1, BufferSize: 64}, discardLogger())

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.ObserveTokens(observation(i))
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	s.Close()
	wg.Wait()

	stats := s.Stats()
	if stats.Observed != 1600 {
		t.Errorf("observed = %d, want 1600", stats.Observed)
	}
	if stats.Stored+stats.Dropped != stats.Sampled {
		t.Errorf("stored %d + dropped %d != sampled %d", stats.Stored, stats.Dropped, stats.Sampled)
	}
}

func TestSampler_WithInstrumentation(t *testing.T) {
	store := NewMemoryStore()
	s := NewSampler(store, SamplerConfig{SampleRate: 1}, discardLogger())

	in, err := metrics.NewInstrumentation(metrics.NewRegistry(),
		metrics.WithTokenObserver(s),
		metrics.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("NewInstrumentation() error = %v", err)
	}

	in.RecordLLMCall(metrics.LLMCall{
		Provider:     "OpenAI",
		Model:        "gpt-4o",
		Scope:        metrics.ScopeReflect,
		InputTokens:  900,
		OutputTokens: 80,
		Success:      true,
	})
	s.Close()

	input, _ := store.Samples(context.Background(), Filter{Direction: metrics.DirectionInput})
	output, _ := store.Samples(context.Background(), Filter{Direction: metrics.DirectionOutput})
	if len(input) != 1 || input[0].Tokens != 900 || input[0].Provider != "openai" {
		t.Errorf("input samples = %+v", input)
	}
	if len(output) != 1 || output[0].Tokens != 80 {
		t.Errorf("output samples = %+v", output)
	}
}
