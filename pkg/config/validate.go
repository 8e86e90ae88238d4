package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error refers to field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLogging(&cfg.Telemetry.Logging)...)
	errs = append(errs, validateMetrics(&cfg.Telemetry.Metrics)...)
	errs = append(errs, validateTracing(&cfg.Telemetry.Tracing)...)
	errs = append(errs, validateHealth(&cfg.Telemetry)...)
	errs = append(errs, validateTokenStats(&cfg.Telemetry.TokenStats)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", cfg.ReadTimeout},
		{"server.write_timeout", cfg.WriteTimeout},
		{"server.idle_timeout", cfg.IdleTimeout},
		{"server.shutdown_timeout", cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			errs = append(errs, FieldError{Field: d.field, Message: "must not be negative"})
		}
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateLogging(cfg *LoggingConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Format),
		})
	}

	return errs
}

func validateMetrics(cfg *MetricsConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && !strings.HasPrefix(cfg.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if len(cfg.TokenBuckets) == 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.token_buckets",
			Message: "at least one boundary is required",
		})
	}
	for i, b := range cfg.TokenBuckets {
		if b <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.metrics.token_buckets[%d]", i),
				Message: fmt.Sprintf("boundary %d must be positive", b),
			})
			continue
		}
		if i > 0 && b <= cfg.TokenBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.metrics.token_buckets[%d]", i),
				Message: "boundaries must be strictly increasing",
			})
		}
	}

	if cfg.MaxLabelValues < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.max_label_values",
			Message: "must not be negative (0 disables the limit)",
		})
	}

	return errs
}

func validateTracing(cfg *TracingConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}

	switch cfg.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Sampler),
		})
	}

	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

func validateHealth(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	paths := map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
	}
	for field, path := range paths {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, FieldError{Field: field, Message: "path must start with /"})
		}
		if cfg.Metrics.Enabled && path == cfg.Metrics.Path {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("path %q is already used by metrics", path)})
		}
	}
	if cfg.Health.LivenessPath != "" && cfg.Health.LivenessPath == cfg.Health.ReadinessPath {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.readiness_path",
			Message: "readiness path must differ from liveness path",
		})
	}

	if cfg.Health.CheckTimeout < 0 || cfg.Health.CheckTimeout > time.Minute {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.check_timeout",
			Message: "check timeout must be between 0 and 60s",
		})
	}

	return errs
}

func validateTokenStats(cfg *TokenStatsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.token_stats.sqlite.path",
				Message: "path is required for the sqlite backend",
			})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "telemetry.token_stats.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.MaxOpenConns < 0 {
			errs = append(errs, FieldError{
				Field:   "telemetry.token_stats.sqlite.max_open_conns",
				Message: "must not be negative",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.token_stats.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.SampleRate < 0 || cfg.SampleRate > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.token_stats.sample_rate",
			Message: "sample rate must be between 0.0 and 1.0",
		})
	}
	if cfg.BufferSize < 0 {
		errs = append(errs, FieldError{Field: "telemetry.token_stats.buffer_size", Message: "must not be negative"})
	}
	if cfg.BatchSize < 0 {
		errs = append(errs, FieldError{Field: "telemetry.token_stats.batch_size", Message: "must not be negative"})
	}
	if cfg.FlushInterval < 0 {
		errs = append(errs, FieldError{Field: "telemetry.token_stats.flush_interval", Message: "must not be negative"})
	}

	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.token_stats.retention.days",
			Message: "must not be negative (0 keeps samples forever)",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "telemetry.token_stats.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.PruneSchedule, err),
		})
	}

	return errs
}
