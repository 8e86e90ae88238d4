package tokenstats

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

// SamplerConfig contains configuration for the token sampler.
type SamplerConfig struct {
	// SampleRate is the fraction of observations kept, from 0 to 1.
	SampleRate float64

	// BufferSize is the number of samples that can wait for a flush.
	// Default: 4096
	BufferSize int

	// BatchSize flushes early once this many samples are pending.
	// Default: 256
	BatchSize int

	// FlushInterval is the longest a sample waits before being written.
	// Default: 5 seconds
	FlushInterval time.Duration

	// WriteTimeout bounds each store write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultSamplerConfig returns the default sampler configuration.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		SampleRate:    1.0,
		BufferSize:    4096,
		BatchSize:     256,
		FlushInterval: 5 * time.Second,
		WriteTimeout:  5 * time.Second,
	}
}

// SamplerStats counts what happened to observations.
type SamplerStats struct {
	Observed uint64 // passed to ObserveTokens
	Sampled  uint64 // kept by the sample rate
	Dropped  uint64 // lost because the buffer was full or the sampler closed
	Stored   uint64 // written to the store
	Failed   uint64 // lost to store errors
}

// Sampler records a fraction of token observations into a Store. It
// implements metrics.TokenObserver and never blocks the caller.
type Sampler struct {
	store  Store
	config SamplerConfig
	logger *slog.Logger
	random func() float64

	mu      sync.RWMutex
	samples chan Sample
	closed  bool
	flushCh chan chan struct{}
	exited  chan struct{}
	wg      sync.WaitGroup

	observed atomic.Uint64
	sampled  atomic.Uint64
	dropped  atomic.Uint64
	stored   atomic.Uint64
	failed   atomic.Uint64
}

var _ metrics.TokenObserver = (*Sampler)(nil)

// NewSampler starts a sampler writing to store. Close must be called to
// flush pending samples.
func NewSampler(store Store, cfg SamplerConfig, logger *slog.Logger) *Sampler {
	def := DefaultSamplerConfig()
	if cfg.SampleRate < 0 {
		cfg.SampleRate = 0
	}
	if cfg.SampleRate > 1 {
		cfg.SampleRate = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sampler{
		store:   store,
		config:  cfg,
		logger:  logger.With("component", "tokenstats.sampler"),
		random:  rand.Float64,
		samples: make(chan Sample, cfg.BufferSize),
		flushCh: make(chan chan struct{}),
		exited:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// ObserveTokens queues the observation if it is sampled and the buffer has
// room.
func (s *Sampler) ObserveTokens(obs metrics.TokenObservation) {
	s.observed.Add(1)
	if s.config.SampleRate < 1 && s.random() >= s.config.SampleRate {
		return
	}
	s.sampled.Add(1)

	sample := Sample{
		Provider:   obs.Provider,
		Model:      obs.Model,
		Scope:      obs.Scope,
		Direction:  obs.Direction,
		Tokens:     obs.Tokens,
		RecordedAt: obs.At,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return
	}
	select {
	case s.samples <- sample:
	default:
		s.dropped.Add(1)
	}
}

// Flush writes pending samples and waits for the write to finish.
func (s *Sampler) Flush(ctx context.Context) error {
	done := make(chan struct{})

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	// The writer may be busy in a slow Append; wait without holding mu so
	// Close and ObserveTokens are not held up behind this call.
	select {
	case s.flushCh <- done:
	case <-s.exited:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Observed: s.observed.Load(),
		Sampled:  s.sampled.Load(),
		Dropped:  s.dropped.Load(),
		Stored:   s.stored.Load(),
		Failed:   s.failed.Load(),
	}
}

// Close stops accepting samples, writes what is pending and waits for the
// writer to exit. It does not close the store.
func (s *Sampler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.samples)
	s.mu.Unlock()

	s.wg.Wait()

	stats := s.Stats()
	s.logger.Info("token sampler stopped",
		"stored", stats.Stored,
		"dropped", stats.Dropped,
		"failed", stats.Failed,
	)
	return nil
}

func (s *Sampler) run() {
	defer s.wg.Done()
	defer close(s.exited)

	ticker := time.NewTicker(s.config.FlushInterval)
	defer ticker.Stop()

	batch := make([]Sample, 0, s.config.BatchSize)
	for {
		select {
		case sample, ok := <-s.samples:
			if !ok {
				s.write(batch)
				return
			}
			batch = append(batch, sample)
			if len(batch) >= s.config.BatchSize {
				s.write(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			s.write(batch)
			batch = batch[:0]

		case done := <-s.flushCh:
			// Drain what is already queued so Flush covers every sample
			// observed before it was called.
		drain:
			for {
				select {
				case sample, ok := <-s.samples:
					if !ok {
						break drain
					}
					batch = append(batch, sample)
					if len(batch) >= s.config.BatchSize {
						s.write(batch)
						batch = batch[:0]
					}
				default:
					break drain
				}
			}
			s.write(batch)
			batch = batch[:0]
			close(done)
		}
	}
}

func (s *Sampler) write(batch []Sample) {
	if len(batch) == 0 {
		return
	}

	batchID := uuid.NewString()
	for i := range batch {
		batch[i].BatchID = batchID
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	if err := s.store.Append(ctx, batch); err != nil {
		s.failed.Add(uint64(len(batch)))
		s.logger.Error("failed to store token samples",
			"error", err,
			"batch_id", batchID,
			"count", len(batch),
		)
		return
	}
	s.stored.Add(uint64(len(batch)))
	s.logger.Debug("stored token samples", "batch_id", batchID, "count", len(batch))
}
