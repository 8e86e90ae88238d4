package tokenstats

import (
	"context"
	"testing"
	"time"

	"hindsight-hq/hindsight/pkg/telemetry/metrics"
)

func TestScheduler_RunOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Append(ctx, []Sample{
		sample("openai", metrics.DirectionInput, 1, -10*24*time.Hour),
		sample("openai", metrics.DirectionInput, 2, -6*24*time.Hour),
		sample("openai", metrics.DirectionInput, 3, -time.Hour),
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	s := NewScheduler(store, 7, "0 4 * * *", discardLogger())
	s.now = func() time.Time { return baseTime }

	deleted, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if n, _ := store.Count(ctx, Filter{}); n != 2 {
		t.Errorf("remaining = %d, want 2", n)
	}
}

func TestScheduler_RetentionDisabled(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Append(ctx, []Sample{sample("openai", metrics.DirectionInput, 1, -365*24*time.Hour)})

	s := NewScheduler(store, 0, "0 4 * * *", discardLogger())
	if deleted, err := s.RunOnce(ctx); err != nil || deleted != 0 {
		t.Errorf("RunOnce() = %d, %v, want nothing deleted", deleted, err)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.Running() {
		t.Error("scheduler should not run when retention is disabled")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(NewMemoryStore(), 30, "0 4 * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.Running() {
		t.Fatal("scheduler not running after Start")
	}

	next := s.NextRun()
	if next.IsZero() || next.Hour() != 4 || next.Minute() != 0 {
		t.Errorf("NextRun() = %v, want 04:00", next)
	}

	s.Stop()
	if s.Running() {
		t.Error("scheduler still running after Stop")
	}
	if !s.NextRun().IsZero() {
		t.Error("NextRun() should be zero when stopped")
	}
	s.Stop()
}

func TestScheduler_StopsOnContextCancel(t *testing.T) {
	s := NewScheduler(NewMemoryStore(), 30, "*/5 * * * *", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.Running() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Running() {
		t.Error("scheduler still running after context cancel")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(NewMemoryStore(), 30, "whenever", discardLogger())
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() with invalid schedule should fail")
	}
}
