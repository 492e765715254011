// Package reset purges the schedule and booking quotas at the start of each week.
package reset

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stiralka/internal/metrics"
)

// Config holds configuration for the weekly reset scheduler.
type Config struct {
	// Timezone for the week boundary (e.g., "Europe/Moscow").
	Timezone string
	// CheckInterval is how often to check whether the boundary was crossed.
	// Must stay within the Monday 00:00-00:59 window, i.e. at most one hour.
	CheckInterval time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Timezone:      "Europe/Moscow",
		CheckInterval: 10 * time.Minute,
	}
}

// Store is the part of the database the reset touches.
type Store interface {
	ResetWeek(ctx context.Context) error
}

// Scheduler runs the weekly reset loop.
type Scheduler struct {
	config    Config
	store     Store
	location  *time.Location
	logger    *zerolog.Logger
	mu        sync.Mutex
	lastReset time.Time
	running   bool
	stopCh    chan struct{}
}

// NewScheduler creates a weekly reset scheduler.
func NewScheduler(config Config, store Store, logger *zerolog.Logger) (*Scheduler, error) {
	if config.CheckInterval <= 0 || config.CheckInterval > time.Hour {
		config.CheckInterval = DefaultConfig().CheckInterval
	}
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		config:   config,
		store:    store,
		location: loc,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the scheduler loop. It blocks until the context is cancelled
// or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.logger.Info().
		Str("timezone", s.config.Timezone).
		Dur("check_interval", s.config.CheckInterval).
		Msg("weekly reset scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("weekly reset scheduler stopped by context")
			return
		case <-s.stopCh:
			s.logger.Info().Msg("weekly reset scheduler stopped")
			return
		case <-ticker.C:
			s.checkAndRun(ctx)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

func (s *Scheduler) checkAndRun(ctx context.Context) {
	now := time.Now().In(s.location)

	s.mu.Lock()
	due := Due(s.lastReset, now)
	s.mu.Unlock()

	if !due {
		return
	}

	if err := s.store.ResetWeek(ctx); err != nil {
		s.logger.Error().Err(err).Msg("weekly reset failed")
		return
	}

	s.mu.Lock()
	s.lastReset = now
	s.mu.Unlock()

	metrics.IncWeeklyReset()
	s.logger.Info().Time("at", now).Msg("weekly schedule reset")
}

// Due reports whether a reset should run: now is inside the Monday
// 00:00-00:59 window and the current week has not been reset yet.
func Due(lastReset, now time.Time) bool {
	if now.Weekday() != time.Monday || now.Hour() != 0 {
		return false
	}
	return lastReset.Before(WeekStart(now))
}

// WeekStart returns Monday 00:00 of now's week in now's location.
func WeekStart(now time.Time) time.Time {
	daysSinceMonday := (int(now.Weekday()) + 6) % 7
	monday := now.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, now.Location())
}
