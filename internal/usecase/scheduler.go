package usecase

import (
	"context"
	"log/slog"

	"SandwichAgent/internal/ports"
)

// Scheduler wires the interval driver with recurring session runs. A state
// machine is terminal once its session ends, so every tick builds a fresh
// session through the factory.
type Scheduler struct {
	driver     ports.Scheduler
	newSession func() *Session
	opts       Options
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring sessions.
func NewScheduler(driver ports.Scheduler, newSession func() *Session, opts Options, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, newSession: newSession, opts: opts, logger: logger}
}

// Start registers the session job with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.newSession == nil {
		return nil
	}

	job := func() {
		session := s.newSession()
		summary, err := session.Run(ctx, s.opts)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("scheduled session failed", "error", err)
			}
			return
		}
		if s.logger != nil {
			s.logger.Info("scheduled session finished",
				"session", summary.SessionID,
				"sandwiches", summary.SandwichesMade,
				"attempts", summary.ForagingAttempts)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
