// Package server provides the HTTP server that exposes hindsight telemetry.
//
// # Routes
//
//   - GET <metrics.path> (default /metrics) - Prometheus text exposition
//   - GET <health.liveness_path> (default /health) - Liveness probe, always 200
//   - GET <health.readiness_path> (default /ready) - Readiness probe, 503 when a check fails
//   - GET /version - Build information
//
// The scrape endpoint is only registered when metrics are enabled and a
// registry is supplied.
//
// # Middleware Chain
//
// Requests pass through the following middleware (innermost to outermost):
//  1. Tracing: Server span per request (only when a tracer is configured)
//  2. RequestID: Reuses or generates X-Request-ID and adds it to log context
//  3. Logging: One "request completed" entry per request
//  4. Recovery: Recovers from panics and returns 500
//
// # Basic Usage
//
//	srv := server.New(cfg, reg, checker,
//	    server.WithLogger(logger),
//	    server.WithTracer(tracer),
//	)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Start blocks until ctx is cancelled and then shuts down gracefully,
// waiting up to server.shutdown_timeout for in-flight scrapes. Signal
// handling is left to the caller.
package server
