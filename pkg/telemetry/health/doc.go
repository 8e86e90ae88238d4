// Package health provides liveness and readiness probes for the hindsight
// telemetry endpoint.
//
// Liveness only reports that the process is serving HTTP. Readiness runs
// every registered check concurrently, each under its own timeout, and
// returns 503 if any check fails:
//
//	checker := health.New(5*time.Second)
//	checker.RegisterCheck("metrics", health.GathererCheck(registry.Gatherer()))
//	checker.RegisterCheck("token_store", store.Ping)
//
//	mux.Handle("/health", checker.LivenessHandler())
//	mux.Handle("/ready", checker.ReadinessHandler())
//
// A readiness response lists every check:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "metrics": {"status": "ok", "duration_ms": 0.4},
//	        "token_store": {"status": "unhealthy", "message": "database is locked"}
//	    },
//	    "timestamp": "2026-10-15T10:30:00Z"
//	}
package health
