package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "HINDSIGHT_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Fields absent from the file keep their defaults. The result is validated.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention HINDSIGHT_SECTION_FIELD (e.g., HINDSIGHT_SERVER_LISTEN_ADDRESS)
// and always take precedence over the file. An empty path skips the file
// and starts from Default.
//
// The loading sequence is:
// 1. Default values
// 2. YAML from file
// 3. Environment variable overrides
// 4. Validation
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration on top of the defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. A variable that is set but cannot be parsed is an error.
func applyEnvOverrides(cfg *Config) error {
	e := &envReader{}

	// Server overrides
	e.str("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	e.duration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	e.duration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	e.duration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	e.duration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Telemetry overrides
	e.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	e.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolean("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)

	e.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	e.integer("TELEMETRY_METRICS_MAX_LABEL_VALUES", &cfg.Telemetry.Metrics.MaxLabelValues)
	e.intList("TELEMETRY_METRICS_TOKEN_BUCKETS", &cfg.Telemetry.Metrics.TokenBuckets)

	e.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	e.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	e.str("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	e.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	e.boolean("TELEMETRY_TOKEN_STATS_ENABLED", &cfg.Telemetry.TokenStats.Enabled)
	e.str("TELEMETRY_TOKEN_STATS_BACKEND", &cfg.Telemetry.TokenStats.Backend)
	e.str("TELEMETRY_TOKEN_STATS_SQLITE_PATH", &cfg.Telemetry.TokenStats.SQLite.Path)
	e.str("TELEMETRY_TOKEN_STATS_SQLITE_DRIVER", &cfg.Telemetry.TokenStats.SQLite.Driver)
	e.float("TELEMETRY_TOKEN_STATS_SAMPLE_RATE", &cfg.Telemetry.TokenStats.SampleRate)
	e.integer("TELEMETRY_TOKEN_STATS_RETENTION_DAYS", &cfg.Telemetry.TokenStats.Retention.Days)
	e.str("TELEMETRY_TOKEN_STATS_RETENTION_PRUNE_SCHEDULE", &cfg.Telemetry.TokenStats.Retention.PruneSchedule)

	if len(e.errs) > 0 {
		return ValidationError{Errors: e.errs}
	}
	return nil
}

// envReader reads HINDSIGHT_ variables and collects parse failures.
type envReader struct {
	errs []FieldError
}

func (e *envReader) lookup(name string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

func (e *envReader) fail(name string, val string, err error) {
	e.errs = append(e.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf("cannot parse %q: %v", val, err),
	})
}

func (e *envReader) str(name string, dst *string) {
	if val, ok := e.lookup(name); ok {
		*dst = val
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	if val, ok := e.lookup(name); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) integer(name string, dst *int) {
	if val, ok := e.lookup(name); ok {
		i, err := strconv.Atoi(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = i
	}
}

func (e *envReader) float(name string, dst *float64) {
	if val, ok := e.lookup(name); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(name string, dst *time.Duration) {
	if val, ok := e.lookup(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			e.fail(name, val, err)
			return
		}
		*dst = d
	}
}

// intList parses a comma separated list such as "100,500,1000".
func (e *envReader) intList(name string, dst *[]int) {
	val, ok := e.lookup(name)
	if !ok {
		return
	}
	parts := strings.Split(val, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			e.fail(name, val, err)
			return
		}
		out = append(out, i)
	}
	*dst = out
}
