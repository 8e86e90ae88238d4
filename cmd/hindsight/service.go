package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"hindsight-hq/hindsight/pkg/cli"
	"hindsight-hq/hindsight/pkg/config"
	"hindsight-hq/hindsight/pkg/server"
	"hindsight-hq/hindsight/pkg/telemetry/health"
	"hindsight-hq/hindsight/pkg/telemetry/logging"
	"hindsight-hq/hindsight/pkg/telemetry/metrics"
	"hindsight-hq/hindsight/pkg/telemetry/tokenstats"
	"hindsight-hq/hindsight/pkg/telemetry/tracing"
)

// service is everything the run command starts. newService is the single
// place the metric registry is created.
type service struct {
	logger *logging.Logger

	// cfg is the last applied configuration.
	mu  sync.Mutex
	cfg *config.Config

	registry        *metrics.Registry
	instrumentation *metrics.Instrumentation
	tracer          *tracing.Tracer
	checker         *health.Checker
	server          *server.Server

	// Nil when token sampling is disabled.
	store     tokenstats.Store
	sampler   *tokenstats.Sampler
	scheduler *tokenstats.Scheduler
}

func newService(ctx context.Context, cfg *config.Config, logger *logging.Logger) (_ *service, err error) {
	svc := &service{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			if cerr := svc.Close(context.Background()); cerr != nil {
				logger.Warn("failed to release partially started service", "error", cerr)
			}
		}
	}()

	buckets, err := metrics.NewTokenBuckets(cfg.Telemetry.Metrics.TokenBuckets)
	if err != nil {
		return nil, fmt.Errorf("token buckets: %w", err)
	}

	opts := []metrics.Option{
		metrics.WithTokenBuckets(buckets),
		metrics.WithMaxLabelValues(cfg.Telemetry.Metrics.MaxLabelValues),
		metrics.WithLogger(logger.Component("metrics")),
	}

	if ts := cfg.Telemetry.TokenStats; ts.Enabled {
		if svc.store, err = openStore(ts, logger); err != nil {
			return nil, err
		}
		svc.sampler = tokenstats.NewSampler(svc.store, tokenstats.SamplerConfig{
			SampleRate:    ts.SampleRate,
			BufferSize:    ts.BufferSize,
			BatchSize:     ts.BatchSize,
			FlushInterval: ts.FlushInterval,
		}, logger.Logger)
		svc.scheduler = tokenstats.NewScheduler(svc.store, ts.Retention.Days, ts.Retention.PruneSchedule, logger.Logger)
		opts = append(opts, metrics.WithTokenObserver(svc.sampler))
	}

	svc.registry = metrics.NewRegistry()
	if svc.instrumentation, err = metrics.NewInstrumentation(svc.registry, opts...); err != nil {
		return nil, fmt.Errorf("register metric families: %w", err)
	}

	if svc.tracer, err = tracing.New(ctx, &cfg.Telemetry.Tracing, Version); err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	svc.checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	svc.checker.RegisterCheck("metrics", health.GathererCheck(svc.registry.Gatherer()))
	if svc.store != nil {
		svc.checker.RegisterCheck("token_store", svc.store.Ping)
	}

	svc.server = server.New(cfg, svc.registry, svc.checker,
		server.WithLogger(logger.Logger),
		server.WithTracer(svc.tracer),
		server.WithBuildInfo(server.BuildInfo{Version: Version, Commit: GitCommit, BuildTime: BuildDate}),
	)
	return svc, nil
}

// openStore opens the configured token sample store.
func openStore(ts config.TokenStatsConfig, logger *logging.Logger) (tokenstats.Store, error) {
	switch ts.Backend {
	case "memory":
		return tokenstats.NewMemoryStore(), nil
	case "sqlite":
		store, err := tokenstats.NewSQLiteStore(tokenstats.SQLiteConfig{
			Path:         ts.SQLite.Path,
			Driver:       ts.SQLite.Driver,
			MaxOpenConns: ts.SQLite.MaxOpenConns,
			WALMode:      ts.SQLite.WALMode,
			BusyTimeout:  ts.SQLite.BusyTimeout,
		}, logger.Logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, cli.NewConfigError("telemetry.token_stats.backend", fmt.Sprintf("unsupported backend %q", ts.Backend))
	}
}

// Run starts the retention scheduler and serves until ctx is cancelled.
func (s *service) Run(ctx context.Context) error {
	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
		if next := s.scheduler.NextRun(); !next.IsZero() {
			s.logger.Debug("token sample retention scheduled", "next_run", next)
		}
	}
	return s.server.Start(ctx)
}

// ApplyConfig applies the parts of a reloaded configuration that can
// change while running. Everything else needs a restart.
func (s *service) ApplyConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
		s.logger.Error("failed to apply log level", "error", err)
	}

	if restartRequired(s.cfg, cfg) {
		s.logger.Warn("configuration changes other than telemetry.logging.level take effect after a restart")
	}
	s.cfg = cfg
}

func restartRequired(a, b *config.Config) bool {
	return a.Server != b.Server ||
		a.Telemetry.Logging.Format != b.Telemetry.Logging.Format ||
		a.Telemetry.Logging.AddSource != b.Telemetry.Logging.AddSource ||
		!slices.Equal(a.Telemetry.Logging.RedactKeys, b.Telemetry.Logging.RedactKeys) ||
		a.Telemetry.Metrics.Enabled != b.Telemetry.Metrics.Enabled ||
		a.Telemetry.Metrics.Path != b.Telemetry.Metrics.Path ||
		a.Telemetry.Metrics.MaxLabelValues != b.Telemetry.Metrics.MaxLabelValues ||
		!slices.Equal(a.Telemetry.Metrics.TokenBuckets, b.Telemetry.Metrics.TokenBuckets) ||
		a.Telemetry.Tracing != b.Telemetry.Tracing ||
		a.Telemetry.Health != b.Telemetry.Health ||
		a.Telemetry.TokenStats != b.Telemetry.TokenStats
}

// Close flushes buffered token samples and releases every component. It
// is safe on a partially built service.
func (s *service) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if s.sampler != nil {
		if err := s.sampler.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sampler: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close token store: %w", err))
		}
	}
	if s.tracer != nil {
		if err := s.tracer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}
