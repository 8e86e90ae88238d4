package config

import "time"

// Config is the root configuration structure for hindsight.
type Config struct {
	// Server contains HTTP server configuration for the scrape and health
	// endpoints.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging, metrics, tracing, health and token
	// statistics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:9464", "0.0.0.0:9464").
	// Default: "127.0.0.1:9464"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Scrapes of large registries need headroom here.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metric registry and exposition configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health endpoint configuration.
	Health HealthConfig `yaml:"health"`

	// TokenStats contains raw token count sampling configuration.
	TokenStats TokenStatsConfig `yaml:"token_stats"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit. Changing it in the config file
	// takes effect without a restart.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactKeys lists additional attribute keys whose values are masked.
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig contains metric registry and exposition configuration.
type MetricsConfig struct {
	// Enabled controls whether the scrape endpoint is served. Instrumentation
	// always records; disabling only hides the endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus scrape endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// TokenBuckets are the boundaries of the token_bucket label ranges.
	// Default: [100, 500, 1000, 5000, 10000, 50000]
	TokenBuckets []int `yaml:"token_buckets"`

	// MaxLabelValues caps distinct values of free-form labels (bank_id,
	// model, provider, max_tokens) per metric family. 0 disables the cap.
	// Default: 1000
	MaxLabelValues int `yaml:"max_label_values"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "hindsight"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual readiness checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// TokenStatsConfig contains configuration for sampling raw token counts.
// The samples are used to review token_bucket boundaries against real
// traffic; they are never exported as metrics.
type TokenStatsConfig struct {
	// Enabled controls whether token counts are sampled.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend selects the sample store.
	// Options: "memory", "sqlite"
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite store configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// SampleRate is the fraction of observations kept (0.0 to 1.0).
	// Default: 1.0
	SampleRate float64 `yaml:"sample_rate"`

	// BufferSize is the number of observations buffered before new ones
	// are dropped.
	// Default: 4096
	BufferSize int `yaml:"buffer_size"`

	// BatchSize is the maximum number of samples written per store call.
	// Default: 256
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is how often buffered samples are written.
	// Default: 5s
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Retention controls pruning of old samples.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the file path for the SQLite database.
	// Default: "data/token_stats.db"
	Path string `yaml:"path"`

	// Driver is the database/sql driver name.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// MaxOpenConns is the maximum number of open database connections.
	// Default: 4
	MaxOpenConns int `yaml:"max_open_conns"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains retention policy configuration.
type RetentionConfig struct {
	// Days is how long samples are kept. 0 keeps samples forever.
	// Default: 30
	Days int `yaml:"days"`

	// PruneSchedule is the cron expression for the prune job.
	// Default: "0 4 * * *" (daily at 04:00)
	PruneSchedule string `yaml:"prune_schedule"`
}
