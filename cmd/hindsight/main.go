// Hindsight exposes the telemetry of the hindsight memory service.
//
// It serves Prometheus metrics for retain, recall and reflect operations
// and for the LLM calls they make, with token counts folded into bounded
// token_bucket ranges. Optional raw token sampling feeds a report used to
// review those ranges against real traffic.
//
// Usage:
//
//	# Serve /metrics, /health and /ready with the default configuration
//	hindsight run
//
//	# Start with a configuration file
//	hindsight run --config /etc/hindsight/config.yaml
//
//	# Show which bucket token counts fall into
//	hindsight tokens bucket 90 750 60000
//
//	# Review sampled token counts against the bucket boundaries
//	hindsight tokens report --since 168h
//
//	# List the exported metric families
//	hindsight metrics
package main

func main() {
	Execute()
}
