// Package scheduler runs the poll cycle on an interval plus fixed daily
// times, surviving individual run failures.
package scheduler

import (
	"context"
	"fmt"
	"time"
)

// Logger is the structured logging surface the scheduler reports through.
type Logger interface {
	LogInfo(ctx context.Context, message string, fields map[string]interface{})
	LogError(ctx context.Context, message string, fields map[string]interface{})
}

// Config drives the trigger cadence.
type Config struct {
	Interval      time.Duration
	MorningTime   string // "HH:MM", local time
	AfternoonTime string // "HH:MM", local time
	CheckEvery    time.Duration // trigger evaluation granularity
	ErrorBackoff  time.Duration // sleep after a run panic or error
}

// Scheduler fires a single run function from one goroutine: runs never
// overlap because triggers are evaluated between runs, not concurrently.
type Scheduler struct {
	cfg    Config
	run    func(context.Context)
	logger Logger
	now    func() time.Time
	sleep  func(context.Context, time.Duration)
}

// New builds a scheduler around the run function.
func New(cfg Config, run func(context.Context), logger Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if cfg.CheckEvery <= 0 {
		cfg.CheckEvery = time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Minute
	}
	for _, t := range []string{cfg.MorningTime, cfg.AfternoonTime} {
		if t == "" {
			continue
		}
		if _, err := time.Parse("15:04", t); err != nil {
			return nil, fmt.Errorf("invalid daily time %q: %w", t, err)
		}
	}
	return &Scheduler{
		cfg:    cfg,
		run:    run,
		logger: logger,
		now:    time.Now,
		sleep:  sleepCtx,
	}, nil
}

// Start executes one run immediately, then loops until the context is
// canceled, firing when the interval elapses or a daily time is crossed.
// A failed run backs off and the loop continues; only cancellation exits.
func (s *Scheduler) Start(ctx context.Context) {
	s.safeRun(ctx)
	lastRun := s.now()

	for {
		if ctx.Err() != nil {
			s.logger.LogInfo(ctx, "scheduler stopped", nil)
			return
		}

		s.sleep(ctx, s.cfg.CheckEvery)
		if ctx.Err() != nil {
			s.logger.LogInfo(ctx, "scheduler stopped", nil)
			return
		}

		now := s.now()
		if s.due(lastRun, now) {
			s.safeRun(ctx)
			lastRun = s.now()
		}
	}
}

// due reports whether a trigger fired between lastRun and now: either the
// interval elapsed, or one of the fixed daily times was crossed.
func (s *Scheduler) due(lastRun, now time.Time) bool {
	if now.Sub(lastRun) >= s.cfg.Interval {
		return true
	}
	for _, daily := range []string{s.cfg.MorningTime, s.cfg.AfternoonTime} {
		if daily == "" {
			continue
		}
		parsed, err := time.Parse("15:04", daily)
		if err != nil {
			continue
		}
		trigger := time.Date(now.Year(), now.Month(), now.Day(),
			parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
		if trigger.After(lastRun) && !trigger.After(now) {
			return true
		}
	}
	return false
}

// safeRun contains panics so a bad cycle cannot terminate the process.
func (s *Scheduler) safeRun(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.LogError(ctx, "scheduled run panicked, backing off", map[string]interface{}{
				"panic":   fmt.Sprint(r),
				"backoff": s.cfg.ErrorBackoff.String(),
			})
			s.sleep(ctx, s.cfg.ErrorBackoff)
		}
	}()
	s.run(ctx)
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
