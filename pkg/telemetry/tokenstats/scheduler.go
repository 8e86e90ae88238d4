package tokenstats

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler prunes samples older than the retention period on a cron
// schedule.
type Scheduler struct {
	store         Store
	retentionDays int
	schedule      string
	now           func() time.Time
	logger        *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a scheduler. retentionDays of 0 keeps samples
// forever; Start then does nothing.
func NewScheduler(store Store, retentionDays int, schedule string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:         store,
		retentionDays: retentionDays,
		schedule:      schedule,
		now:           time.Now,
		logger:        logger.With("component", "tokenstats.scheduler"),
		cron:          cron.New(),
	}
}

// RunOnce deletes samples older than the retention period.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune token samples: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("pruned token samples",
			"deleted_count", deleted,
			"retention_days", s.retentionDays,
			"cutoff", cutoff,
		)
	} else {
		s.logger.Debug("no token samples pruned", "cutoff", cutoff)
	}
	return deleted, nil
}

// Start runs RunOnce on the schedule until ctx is cancelled or Stop is
// called.
//
// Common cron expressions:
//   - "0 4 * * *"    - Daily at 4 AM
//   - "0 */6 * * *"  - Every 6 hours
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.retentionDays <= 0 || s.schedule == "" {
		s.logger.Info("token sample retention disabled, skipping scheduler")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, func() { _, _ = s.runScheduled(ctx) }); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("token sample retention scheduler started",
		"schedule", s.schedule,
		"retention_days", s.retentionDays,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context) (int64, error) {
	deleted, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Error("scheduled token sample pruning failed", "error", err)
	}
	return deleted, err
}

// Stop stops the scheduler and waits for a running prune to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = cron.New()
	s.running = false
	s.logger.Info("token sample retention scheduler stopped")
}

// Running reports whether the scheduler is running.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled prune, or the zero time if the
// scheduler is not running.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
