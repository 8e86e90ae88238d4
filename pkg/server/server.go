// Package server serves the hindsight scrape and health endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"hindsight-hq/hindsight/pkg/config"
	"hindsight-hq/hindsight/pkg/telemetry/health"
	"hindsight-hq/hindsight/pkg/telemetry/metrics"
	"hindsight-hq/hindsight/pkg/telemetry/tracing"
)

// VersionPath is the path of the build information endpoint.
const VersionPath = "/version"

// BuildInfo is reported by the version endpoint.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the HTTP server for the metrics and health endpoints.
type Server struct {
	config    config.ServerConfig
	telemetry config.TelemetryConfig
	registry  *metrics.Registry
	checker   *health.Checker
	tracer    *tracing.Tracer
	build     BuildInfo
	logger    *slog.Logger

	mu         sync.RWMutex
	httpServer *http.Server // nil once a shutdown has claimed it
	addr       net.Addr
	isRunning  bool
}

// Option configures a Server.
type Option func(*Server)

// WithTracer wraps every request in a server span.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithLogger sets the logger used for request and lifecycle logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuildInfo sets the data served on the version endpoint.
func WithBuildInfo(info BuildInfo) Option {
	return func(s *Server) { s.build = info }
}

// New creates a server. reg may be nil, in which case no scrape endpoint
// is registered; checker may be nil, in which case readiness has no checks.
func New(cfg *config.Config, reg *metrics.Registry, checker *health.Checker, opts ...Option) *Server {
	if checker == nil {
		checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	}

	s := &Server{
		config:    cfg.Server,
		telemetry: cfg.Telemetry,
		registry:  reg,
		checker:   checker,
		build:     BuildInfo{Version: "dev", Commit: "unknown", BuildTime: "unknown"},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")
	return s
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:        s.Handler(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting telemetry server",
			"address", ln.Addr().String(),
			"metrics_path", s.metricsPath(),
			"liveness_path", s.telemetry.Health.LivenessPath,
			"readiness_path", s.telemetry.Health.ReadinessPath,
			"tracing_enabled", s.tracer != nil && s.tracer.Enabled(),
		)
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		if err := s.Shutdown(context.Background()); err != nil {
			return err
		}
		return <-errChan
	case err, ok := <-errChan:
		if !ok {
			// Shutdown was called directly.
			return nil
		}
		s.markStopped()
		return err
	}
}

// Shutdown gracefully stops the server, waiting up to the configured
// shutdown timeout for in-flight requests. It is a no-op when the server
// is not running or another Shutdown is already stopping it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	if !s.isRunning || httpServer == nil {
		s.mu.Unlock()
		return nil
	}
	s.httpServer = nil
	s.mu.Unlock()

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	var shutdownErr error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during server shutdown", "error", err)
		shutdownErr = fmt.Errorf("server shutdown error: %w", err)
	}

	s.markStopped()
	s.logger.Info("telemetry server stopped")
	return shutdownErr
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listen address once serving has started, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with the middleware chain applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if path := s.metricsPath(); path != "" {
		mux.Handle(path, metrics.Handler(s.registry, s.logger))
	}
	mux.Handle(s.telemetry.Health.LivenessPath, s.checker.LivenessHandler())
	mux.Handle(s.telemetry.Health.ReadinessPath, s.checker.ReadinessHandler())
	mux.Handle(VersionPath, health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))

	var handler http.Handler = mux

	if s.tracer != nil && s.tracer.Enabled() {
		handler = s.tracer.HTTPMiddleware(handler)
	}
	handler = RequestIDMiddleware(handler)
	handler = LoggingMiddleware(s.logger)(handler)

	// Recovery is outermost.
	handler = RecoveryMiddleware(s.logger)(handler)

	return handler
}

// metricsPath returns the scrape path, or "" when exposition is off.
func (s *Server) metricsPath() string {
	if s.registry == nil || !s.telemetry.Metrics.Enabled {
		return ""
	}
	return s.telemetry.Metrics.Path
}
