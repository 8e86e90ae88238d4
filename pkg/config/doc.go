// Package config provides configuration management for hindsight.
//
// This package handles loading and validating configuration from YAML files
// with environment variable overrides, and watching the file for changes.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("hindsight.yaml")            // file only
//	cfg, err := config.LoadConfigWithEnvOverrides("hindsight.yaml")
//	cfg, err := config.LoadConfigWithEnvOverrides("")          // defaults + env
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention HINDSIGHT_SECTION_FIELD.
// For example:
//
//   - HINDSIGHT_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - HINDSIGHT_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - HINDSIGHT_TELEMETRY_METRICS_TOKEN_BUCKETS="100,500,1000" overrides
//     telemetry.metrics.token_buckets
//
// A variable that is set but cannot be parsed fails loading.
//
// # Configuration Precedence
//
//  1. Default values (defaults.go)
//  2. Values from the YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Reloading
//
// Watcher reloads the file on change. Only the logging level is applied to
// the running process; metric families and token bucket boundaries are
// fixed at startup because dashboards depend on them.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:9464"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//	  metrics:
//	    path: "/metrics"
//	    max_label_values: 500
//	  token_stats:
//	    enabled: true
//	    backend: "sqlite"
//	    sample_rate: 0.25
//	    retention:
//	      days: 14
package config
