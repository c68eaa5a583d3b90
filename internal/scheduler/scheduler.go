package scheduler

import (
	"context"
	"log/slog"
	"time"

	"creator_sync/internal/domain"
)

// FleetRunner runs one hourly fleet cycle.
type FleetRunner interface {
	RunCycle(ctx context.Context, now time.Time) (*domain.FleetSummary, error)
}

// Reporter builds and delivers the daily cost digest.
type Reporter interface {
	Report(ctx context.Context) (*domain.CostReport, error)
}

// Scheduler drives the hourly fleet cycle and the daily cost report from a
// wall-clock tick. It is optional: deployments that trigger cycles through
// the HTTP endpoints run with it disabled.
type Scheduler struct {
	fleet      FleetRunner
	costs      Reporter
	reportHour int
	loc        *time.Location
	logger     *slog.Logger
}

func NewScheduler(fleet FleetRunner, costs Reporter, reportHour int, loc *time.Location, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		fleet:      fleet,
		costs:      costs,
		reportHour: reportHour,
		loc:        loc,
		logger:     logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "report_hour", s.reportHour)

	for {
		next := nextHour(time.Now().In(s.loc))

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}

		s.runTick(ctx, next)
	}
}

func (s *Scheduler) runTick(ctx context.Context, now time.Time) {
	tickCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.fleet.RunCycle(tickCtx, now); err != nil {
		s.logger.Error("fleet cycle failed", "hour", now.Hour(), "error", err)
	}

	if now.Hour() == s.reportHour {
		if _, err := s.costs.Report(tickCtx); err != nil {
			s.logger.Error("cost report failed", "error", err)
		}
	}
}

func nextHour(t time.Time) time.Time {
	return t.Truncate(time.Hour).Add(time.Hour)
}
