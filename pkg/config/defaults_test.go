package config

import (
	"slices"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("listen address = %q", cfg.Server.ListenAddress)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should be enabled by default")
	}
	if cfg.Telemetry.Metrics.MaxLabelValues != DefaultMaxLabelValues {
		t.Errorf("max label values = %d", cfg.Telemetry.Metrics.MaxLabelValues)
	}
	if cfg.Telemetry.Tracing.Enabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.Telemetry.TokenStats.Enabled {
		t.Error("token stats should be disabled by default")
	}
	if !cfg.Telemetry.TokenStats.SQLite.WALMode {
		t.Error("WAL mode should be on by default")
	}
	if cfg.Telemetry.TokenStats.Retention.Days != DefaultTokenStatsRetentionDays {
		t.Errorf("retention days = %d", cfg.Telemetry.TokenStats.Retention.Days)
	}
}

func TestDefault_TokenBucketsAreCopied(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Metrics.TokenBuckets[0] = 1

	if DefaultTokenBuckets[0] != 100 {
		t.Fatalf("DefaultTokenBuckets mutated through a config: %v", DefaultTokenBuckets)
	}
	if !slices.Equal(Default().Telemetry.Metrics.TokenBuckets, []int{100, 500, 1000, 5000, 10000, 50000}) {
		t.Error("fresh Default() does not carry the default boundaries")
	}
}

func TestApplyDefaults_KeepsSetValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.ReadTimeout = 2 * time.Second
	cfg.Telemetry.Logging.Level = "debug"
	cfg.Telemetry.TokenStats.Backend = "memory"

	ApplyDefaults(cfg)

	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("read timeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.TokenStats.Backend != "memory" {
		t.Errorf("backend = %q", cfg.Telemetry.TokenStats.Backend)
	}
	if cfg.Server.WriteTimeout != DefaultWriteTimeout {
		t.Errorf("write timeout = %v, want default", cfg.Server.WriteTimeout)
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	first := *cfg
	ApplyDefaults(cfg)

	if cfg.Server != first.Server || cfg.Telemetry.Health != first.Telemetry.Health {
		t.Error("second ApplyDefaults changed the configuration")
	}
}
