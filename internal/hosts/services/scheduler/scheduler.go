// Package scheduler drives the update cycle: once at start, then on a fixed interval, plus
// whenever a trigger fires. Cycles never overlap.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/haukened/auto-hosts/internal/hosts/common/log"
)

// Task is one unit of scheduled work. It must handle its own errors.
type Task func(ctx context.Context)

// Scheduler runs a Task until its context is canceled.
type Scheduler struct {
	interval time.Duration
	task     Task
	trigger  <-chan struct{}
	logger   log.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTrigger runs an extra cycle each time ch receives. A receive while a cycle is
// running is picked up after it ends.
func WithTrigger(ch <-chan struct{}) Option {
	return func(s *Scheduler) { s.trigger = ch }
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(l log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// New returns a Scheduler that calls task every interval.
func New(interval time.Duration, task Task, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if task == nil {
		return nil, fmt.Errorf("task must not be nil")
	}
	s := &Scheduler{interval: interval, task: task, logger: log.NewNoopLogger()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Run calls the task immediately and then on every tick until ctx is done.
// The task runs on the calling goroutine, so a slow cycle delays the next one instead of
// overlapping it; ticks missed meanwhile are coalesced by the ticker. Run returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info(map[string]any{"interval": s.interval.String()}, "Scheduler started")
	defer s.logger.Info(nil, "Scheduler stopped")

	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.task(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.trigger:
			s.logger.Debug(nil, "Change detected, running early cycle")
		}
		// Cancellation may race with a ready tick.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.task(ctx)
	}
}
