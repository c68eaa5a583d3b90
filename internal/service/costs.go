package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"creator_sync/internal/domain"
)

// costWindow is the reporting window; the digest runs daily.
const costWindow = 24 * time.Hour

// CostService aggregates the last day of sync activity into a per-handle
// cost digest and pushes it to the ops channel.
type CostService struct {
	syncLog   SyncLogStore
	jobs      JobClient
	messenger Messenger
	channel   string
	batchSize int
	logger    *slog.Logger
}

func NewCostService(
	syncLog SyncLogStore,
	jobs JobClient,
	messenger Messenger,
	channel string,
	batchSize int,
	logger *slog.Logger,
) *CostService {
	return &CostService{
		syncLog:   syncLog,
		jobs:      jobs,
		messenger: messenger,
		channel:   channel,
		batchSize: batchSize,
		logger:    logger.With("component", "costs"),
	}
}

// Report builds the digest for the trailing 24 hours and sends it. Delivery
// is best-effort: a messaging failure logs and the report is still returned.
func (s *CostService) Report(ctx context.Context) (*domain.CostReport, error) {
	end := time.Now().UTC()
	start := end.Add(-costWindow)

	entries, err := s.syncLog.Window(ctx, start, []domain.SyncMode{
		domain.ModeNewPosts,
		domain.ModeRefreshCounts,
	})
	if err != nil {
		return nil, fmt.Errorf("load sync window: %w", err)
	}

	costs, unknown := s.lookupCosts(ctx, entries)
	report := s.aggregate(entries, costs, unknown, start, end)

	digest := formatDigest(report)
	if s.messenger != nil {
		if err := s.messenger.SendMessage(ctx, s.channel, digest); err != nil {
			s.logger.Warn("digest delivery failed", "error", err)
		}
	}

	s.logger.Info("cost report built",
		"entries", len(entries),
		"handles", len(report.Rows),
		"total_usd", report.TotalCostUSD,
		"unknown_runs", report.UnknownCosts,
	)
	return report, nil
}

// lookupCosts resolves per-run cost for each distinct run id, a batch at a
// time so the report never floods the job API.
func (s *CostService) lookupCosts(ctx context.Context, entries []domain.SyncLogEntry) (map[string]float64, map[string]bool) {
	seen := make(map[string]struct{}, len(entries))
	var runIDs []string
	for _, e := range entries {
		if e.RunID == "" {
			continue
		}
		if _, ok := seen[e.RunID]; ok {
			continue
		}
		seen[e.RunID] = struct{}{}
		runIDs = append(runIDs, e.RunID)
	}

	costs := make(map[string]float64, len(runIDs))
	unknown := make(map[string]bool)
	batch := s.batchSize
	if batch <= 0 {
		batch = 20
	}

	var mu sync.Mutex
	for i := 0; i < len(runIDs); i += batch {
		chunk := runIDs[i:min(i+batch, len(runIDs))]

		var wg sync.WaitGroup
		for _, runID := range chunk {
			wg.Add(1)
			go func(runID string) {
				defer wg.Done()
				cost, err := s.jobs.RunCost(ctx, runID)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					s.logger.Warn("run cost unavailable", "run_id", runID, "error", err)
					unknown[runID] = true
					return
				}
				costs[runID] = cost
			}(runID)
		}
		wg.Wait()
	}
	return costs, unknown
}

func (s *CostService) aggregate(
	entries []domain.SyncLogEntry,
	costs map[string]float64,
	unknown map[string]bool,
	start, end time.Time,
) *domain.CostReport {
	report := &domain.CostReport{WindowStart: start, WindowEnd: end}

	rows := make(map[string]*domain.CostRow)
	var order []string
	for _, e := range entries {
		key := fmt.Sprintf("%s|%s", e.Handle, e.Platform)
		row, ok := rows[key]
		if !ok {
			row = &domain.CostRow{Handle: e.Handle, Platform: e.Platform, CostKnown: true}
			rows[key] = row
			order = append(order, key)
		}

		switch e.Outcome {
		case domain.OutcomeSucceeded:
			row.Succeeded++
			switch e.Mode {
			case domain.ModeNewPosts:
				row.PostsAdded += e.PostsProcessed
				report.TotalNewPosts += e.PostsProcessed
			case domain.ModeRefreshCounts:
				row.PostsRefreshed += e.PostsProcessed
				report.TotalRefreshed += e.PostsProcessed
			}
		case domain.OutcomeFailed:
			row.Failed++
		}

		if e.RunID == "" {
			continue
		}
		if unknown[e.RunID] {
			row.CostKnown = false
			report.UnknownCosts++
			continue
		}
		row.CostUSD += costs[e.RunID]
	}

	sort.Strings(order)
	failing := make(map[string]struct{})
	for _, key := range order {
		row := rows[key]
		report.Rows = append(report.Rows, *row)
		if row.CostKnown {
			report.TotalCostUSD += row.CostUSD
		}
		if row.Failed > 0 {
			failing[row.Handle] = struct{}{}
		}
	}

	for h := range failing {
		report.FailingHandles = append(report.FailingHandles, h)
	}
	sort.Strings(report.FailingHandles)

	report.ProjectedMonthlyUSD = report.TotalCostUSD * 30
	return report
}

// formatDigest renders the fixed-width text block posted to the ops channel.
func formatDigest(r *domain.CostReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily sync cost report (%s - %s)\n",
		r.WindowStart.Format("Jan 2 15:04"),
		r.WindowEnd.Format("Jan 2 15:04"),
	)

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tPLATFORM\tNEW\tREFRESHED\tOK\tFAIL\tCOST")
	for _, row := range r.Rows {
		cost := fmt.Sprintf("$%.2f", row.CostUSD)
		if !row.CostKnown {
			cost = "?"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			row.Handle, row.Platform,
			row.PostsAdded, row.PostsRefreshed,
			row.Succeeded, row.Failed,
			cost,
		)
	}
	w.Flush()

	fmt.Fprintf(&b, "\nTotal: $%.2f (projected $%.2f/month)\n", r.TotalCostUSD, r.ProjectedMonthlyUSD)
	if r.UnknownCosts > 0 {
		fmt.Fprintf(&b, "Cost unknown for %d run(s).\n", r.UnknownCosts)
	}
	if len(r.FailingHandles) > 0 {
		fmt.Fprintf(&b, "Failing handles: %s\n", strings.Join(r.FailingHandles, ", "))
	}
	return b.String()
}
