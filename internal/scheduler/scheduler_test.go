package scheduler

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"creator_sync/internal/domain"
)

type stubFleet struct {
	calls int
	hours []int
}

func (s *stubFleet) RunCycle(_ context.Context, now time.Time) (*domain.FleetSummary, error) {
	s.calls++
	s.hours = append(s.hours, now.Hour())
	return &domain.FleetSummary{Hour: now.Hour()}, nil
}

type stubReporter struct {
	calls int
}

func (s *stubReporter) Report(context.Context) (*domain.CostReport, error) {
	s.calls++
	return &domain.CostReport{}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNextHour(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 42, 13, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), nextHour(at))

	onTheHour := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), nextHour(onTheHour))
}

func TestRunTick_FleetEveryHour(t *testing.T) {
	fleet := &stubFleet{}
	costs := &stubReporter{}
	s := NewScheduler(fleet, costs, 8, time.UTC, testLogger())

	s.runTick(context.Background(), time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, fleet.calls)
	assert.Equal(t, 0, costs.calls)
}

func TestRunTick_ReportAtReportHour(t *testing.T) {
	fleet := &stubFleet{}
	costs := &stubReporter{}
	s := NewScheduler(fleet, costs, 8, time.UTC, testLogger())

	s.runTick(context.Background(), time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, fleet.calls)
	assert.Equal(t, 1, costs.calls)
}
