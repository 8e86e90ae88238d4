package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls, last atomic.Int32
	for i := 1; i <= 5; i++ {
		i := int32(i)
		d.Trigger(func() {
			calls.Add(1)
			last.Store(i)
		})
	}

	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("ran callback %d, want the latest (5)", got)
	}
}

func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(80 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Stop, want 0", got)
	}
}

func TestNewWatcher_RequiresPath(t *testing.T) {
	if _, err := NewWatcher("", nil, 0, nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
	initial, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWatcher(path, initial, 20*time.Millisecond, logger)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	changes := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx, func(cfg *Config) { changes <- cfg }) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is ignored.
	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: loud\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(150 * time.Millisecond)
	if got := w.Current().Telemetry.Logging.Level; got != "info" {
		t.Fatalf("current level = %q after invalid write, want info", got)
	}

	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Telemetry.Logging.Level != "debug" {
			t.Errorf("reloaded level = %q, want debug", cfg.Telemetry.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload within 3s")
	}

	if got := w.Current().Telemetry.Logging.Level; got != "debug" {
		t.Errorf("Current() level = %q, want debug", got)
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch did not return after Stop")
	}
}

func TestWatcher_Reload(t *testing.T) {
	path := writeConfig(t, "telemetry:\n  logging:\n    level: warn\n")

	w, err := NewWatcher(path, Default(), 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Stop()

	var got *Config
	w.Reload(func(cfg *Config) { got = cfg })
	if got == nil || got.Telemetry.Logging.Level != "warn" {
		t.Fatalf("Reload() delivered %+v, want level warn", got)
	}
	if w.Current() != got {
		t.Error("Current() does not return the reloaded config")
	}
}
