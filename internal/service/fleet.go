package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"creator_sync/internal/config"
	"creator_sync/internal/domain"
)

// FleetService walks the creator fleet and launches scrape runs. Launching
// only submits jobs; results arrive later through the webhook ingestor, so a
// cycle returns as soon as every submission is acknowledged.
type FleetService struct {
	creators        CreatorStore
	records         RecordStore
	syncLog         SyncLogStore
	launcher        Launcher
	loc             *time.Location
	lookbackMax     int
	refreshURLLimit int
	logger          *slog.Logger

	// bg tracks detached refresh-counts launches so that shutdown (and
	// tests) can wait them out; RunCycle itself never does.
	bg sync.WaitGroup
}

func NewFleetService(
	creators CreatorStore,
	records RecordStore,
	syncLog SyncLogStore,
	launcher Launcher,
	cfg config.SyncConfig,
	logger *slog.Logger,
) (*FleetService, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &FleetService{
		creators:        creators,
		records:         records,
		syncLog:         syncLog,
		launcher:        launcher,
		loc:             loc,
		lookbackMax:     cfg.LookbackMaxDays,
		refreshURLLimit: cfg.RefreshURLLimit,
		logger:          logger.With("component", "fleet"),
	}, nil
}

// RunCycle launches new-posts runs for every active creator whose sync hour
// matches the current hour in the fleet timezone. Creators are processed in
// parallel; one creator failing to launch never blocks the rest.
func (f *FleetService) RunCycle(ctx context.Context, now time.Time) (*domain.FleetSummary, error) {
	hour := now.In(f.loc).Hour()

	creators, err := f.creators.ListDueAtHour(ctx, hour)
	if err != nil {
		return nil, fmt.Errorf("list due creators: %w", err)
	}

	summary := &domain.FleetSummary{Hour: hour, Selected: len(creators)}
	if len(creators) == 0 {
		f.logger.Info("no creators due", "hour", hour)
		return summary, nil
	}

	results := make(chan domain.LaunchResult, len(creators)*2)
	var wg sync.WaitGroup
	for i := range creators {
		c := creators[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.syncCreator(ctx, &c, now, results)
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		summary.Results = append(summary.Results, r)
		if r.Error == "" {
			summary.Launched++
		} else {
			summary.Failed++
		}
	}

	f.logger.Info("fleet cycle finished",
		"hour", hour,
		"selected", summary.Selected,
		"launched", summary.Launched,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (f *FleetService) syncCreator(ctx context.Context, c *domain.Creator, now time.Time, results chan<- domain.LaunchResult) {
	for _, ph := range c.Handles() {
		res := domain.LaunchResult{
			CreatorID: c.ID,
			Platform:  ph.Platform,
			Handle:    ph.Handle,
			Mode:      domain.ModeNewPosts,
		}

		lookback := f.lookbackDays(ctx, ph.Platform, ph.Handle, now)
		h, err := f.launcher.Launch(ctx, ph.Platform, ph.Handle, domain.ModeNewPosts, c.ID, domain.LaunchOptions{
			LookbackDays: lookback,
		})
		if err != nil {
			res.Error = err.Error()
			f.logger.Error("new-posts launch failed",
				"creator_id", c.ID,
				"platform", ph.Platform,
				"handle", ph.Handle,
				"error", err,
			)
		} else {
			res.RunID = h.RunID
		}
		results <- res

		f.launchRefresh(ctx, c.ID, ph.Platform, ph.Handle)
	}
}

// launchRefresh fires a refresh-counts run over the stored post URLs. Its
// outcome never affects the cycle: the launch is detached from the caller's
// lifetime and any failure ends up in the log only.
func (f *FleetService) launchRefresh(ctx context.Context, creatorID int64, platform domain.Platform, handle string) {
	rec, err := f.records.Get(ctx, platform, handle)
	if err != nil {
		f.logger.Warn("record lookup failed, skipping refresh",
			"platform", platform,
			"handle", handle,
			"error", err,
		)
		return
	}

	urls := rec.PostURLs(f.refreshURLLimit)
	if len(urls) == 0 {
		return
	}

	f.bg.Add(1)
	go func() {
		defer f.bg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()

		if _, err := f.launcher.Launch(dctx, platform, handle, domain.ModeRefreshCounts, creatorID, domain.LaunchOptions{
			PostURLs: urls,
		}); err != nil {
			f.logger.Warn("refresh-counts launch failed",
				"platform", platform,
				"handle", handle,
				"error", err,
			)
		}
	}()
}

// lookbackDays sizes the scrape window to the gap since the handle's last
// recorded sync, clamped to [1, lookbackMax]. No history means the full
// window.
func (f *FleetService) lookbackDays(ctx context.Context, platform domain.Platform, handle string, now time.Time) int {
	last, err := f.syncLog.LastSyncFor(ctx, platform, handle)
	if err != nil {
		f.logger.Warn("last sync lookup failed, using max lookback",
			"platform", platform,
			"handle", handle,
			"error", err,
		)
		return f.lookbackMax
	}
	if last == nil {
		return f.lookbackMax
	}

	days := int(now.Sub(*last).Hours() / 24)
	if days < 1 {
		days = 1
	}
	if days > f.lookbackMax {
		days = f.lookbackMax
	}
	return days
}

// ResyncCreator launches on-demand new-posts runs for a single creator,
// regardless of its sync hour. Handles with no sync history get a first-fetch
// launch so the profile snapshot comes along.
func (f *FleetService) ResyncCreator(ctx context.Context, creatorID int64) (*domain.FleetSummary, error) {
	c, err := f.creators.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("load creator: %w", err)
	}

	summary := &domain.FleetSummary{Selected: 1}
	for _, ph := range c.Handles() {
		res := domain.LaunchResult{
			CreatorID: c.ID,
			Platform:  ph.Platform,
			Handle:    ph.Handle,
			Mode:      domain.ModeNewPosts,
		}

		last, err := f.syncLog.LastSyncFor(ctx, ph.Platform, ph.Handle)
		if err != nil {
			res.Error = err.Error()
			summary.Results = append(summary.Results, res)
			summary.Failed++
			continue
		}

		h, err := f.launcher.Launch(ctx, ph.Platform, ph.Handle, domain.ModeNewPosts, c.ID, domain.LaunchOptions{
			FirstFetch:   last == nil,
			LookbackDays: f.lookbackMax,
		})
		if err != nil {
			res.Error = err.Error()
			summary.Failed++
		} else {
			res.RunID = h.RunID
			summary.Launched++
		}
		summary.Results = append(summary.Results, res)
	}
	return summary, nil
}

// Wait blocks until all detached refresh launches have finished. Called on
// shutdown.
func (f *FleetService) Wait() {
	f.bg.Wait()
}
