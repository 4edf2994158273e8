package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"announcer/internal/domain"
)

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (*domain.RunSummary, error)
}

type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	runTimeout time.Duration
	logger     *slog.Logger
}

func NewScheduler(reconciler Reconciler, interval, runTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger.With("component", "scheduler"),
	}
}

// Start runs immediately and then on every tick until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	_, err := s.reconciler.Reconcile(runCtx)
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		s.logger.Info("skipping tick, run already in progress")
	case err != nil:
		s.logger.Error("scheduled reconciliation failed", "error", err)
	}
}
