package config

import (
	"slices"
	"time"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9464"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMaxLabelValues      = 1000
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 0.1
	DefaultTracingServiceName  = "hindsight"
	DefaultTracingOTLPTimeout  = 10 * time.Second
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second

	// Token statistics defaults
	DefaultTokenStatsBackend       = "sqlite"
	DefaultTokenStatsSQLitePath    = "data/token_stats.db"
	DefaultTokenStatsSQLiteDriver  = "sqlite"
	DefaultTokenStatsMaxOpenConns  = 4
	DefaultTokenStatsWALMode       = true
	DefaultTokenStatsBusyTimeout   = 5 * time.Second
	DefaultTokenStatsSampleRate    = 1.0
	DefaultTokenStatsBufferSize    = 4096
	DefaultTokenStatsBatchSize     = 256
	DefaultTokenStatsFlushInterval = 5 * time.Second
	DefaultTokenStatsRetentionDays = 30
	DefaultTokenStatsPruneSchedule = "0 4 * * *"
)

// DefaultTokenBuckets are the default token_bucket boundaries.
var DefaultTokenBuckets = []int{100, 500, 1000, 5000, 10000, 50000}

// Default returns a configuration with every default applied, including
// boolean and numeric fields whose zero value is meaningful. LoadConfig
// decodes the file on top of it, so fields absent from the file keep
// these values.
func Default() *Config {
	cfg := &Config{}
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Metrics.MaxLabelValues = DefaultMaxLabelValues
	cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	cfg.Telemetry.Tracing.OTLP.Insecure = true
	cfg.Telemetry.TokenStats.SampleRate = DefaultTokenStatsSampleRate
	cfg.Telemetry.TokenStats.SQLite.WALMode = DefaultTokenStatsWALMode
	cfg.Telemetry.TokenStats.Retention.Days = DefaultTokenStatsRetentionDays
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values where zero is not
// a usable setting. This function is idempotent and safe to call multiple
// times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Logging defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if len(cfg.Telemetry.Metrics.TokenBuckets) == 0 {
		cfg.Telemetry.Metrics.TokenBuckets = slices.Clone(DefaultTokenBuckets)
	}

	// Tracing defaults
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultTracingOTLPTimeout
	}

	// Health defaults
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	applyTokenStatsDefaults(&cfg.Telemetry.TokenStats)
}

func applyTokenStatsDefaults(ts *TokenStatsConfig) {
	if ts.Backend == "" {
		ts.Backend = DefaultTokenStatsBackend
	}
	if ts.SQLite.Path == "" {
		ts.SQLite.Path = DefaultTokenStatsSQLitePath
	}
	if ts.SQLite.Driver == "" {
		ts.SQLite.Driver = DefaultTokenStatsSQLiteDriver
	}
	if ts.SQLite.MaxOpenConns == 0 {
		ts.SQLite.MaxOpenConns = DefaultTokenStatsMaxOpenConns
	}
	if ts.SQLite.BusyTimeout == 0 {
		ts.SQLite.BusyTimeout = DefaultTokenStatsBusyTimeout
	}
	if ts.BufferSize == 0 {
		ts.BufferSize = DefaultTokenStatsBufferSize
	}
	if ts.BatchSize == 0 {
		ts.BatchSize = DefaultTokenStatsBatchSize
	}
	if ts.FlushInterval == 0 {
		ts.FlushInterval = DefaultTokenStatsFlushInterval
	}
	if ts.Retention.PruneSchedule == "" {
		ts.Retention.PruneSchedule = DefaultTokenStatsPruneSchedule
	}
}
