package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"creator_sync/internal/config"
	"creator_sync/internal/domain"
)

// HealthOptions narrows a health check. An empty Statuses list means active
// and monitoring creators; archived creators are always reported inactive.
type HealthOptions struct {
	Remediate bool
	Statuses  []domain.CreatorStatus
}

// HealthService classifies creators by the age of their last successful sync.
// The view is derived from the sync log at query time; nothing here is
// persisted.
type HealthService struct {
	creators CreatorStore
	syncLog  SyncLogStore
	launcher Launcher
	cfg      config.SyncConfig
	logger   *slog.Logger
}

func NewHealthService(
	creators CreatorStore,
	syncLog SyncLogStore,
	launcher Launcher,
	cfg config.SyncConfig,
	logger *slog.Logger,
) *HealthService {
	return &HealthService{
		creators: creators,
		syncLog:  syncLog,
		launcher: launcher,
		cfg:      cfg,
		logger:   logger.With("component", "health"),
	}
}

func (s *HealthService) Check(ctx context.Context, opts HealthOptions) (*domain.HealthReport, error) {
	statuses := opts.Statuses
	if len(statuses) == 0 {
		statuses = []domain.CreatorStatus{
			domain.StatusActive,
			domain.StatusMonitoring,
			domain.StatusArchived,
		}
	}

	creators, err := s.creators.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("list creators: %w", err)
	}

	now := time.Now().UTC()
	report := &domain.HealthReport{
		CheckedAt: now,
		Totals:    make(map[domain.HealthStatus]int),
	}

	for i := range creators {
		ch, err := s.checkCreator(ctx, &creators[i], now)
		if err != nil {
			return nil, err
		}

		if opts.Remediate && s.needsRemediation(&creators[i], ch) {
			ch.Remediation = s.remediate(ctx, &creators[i], ch)
		}

		report.Totals[ch.Classification]++
		report.Creators = append(report.Creators, *ch)
	}

	s.logger.Info("health check finished",
		"creators", len(report.Creators),
		"healthy", report.Totals[domain.HealthHealthy],
		"stale", report.Totals[domain.HealthStale],
		"critical", report.Totals[domain.HealthCritical],
		"never", report.Totals[domain.HealthNever],
	)
	return report, nil
}

func (s *HealthService) checkCreator(ctx context.Context, c *domain.Creator, now time.Time) (*domain.CreatorHealth, error) {
	ch := &domain.CreatorHealth{
		CreatorID: c.ID,
		Name:      c.Name,
		Status:    c.Status,
		Platforms: make(map[domain.Platform]domain.PlatformSyncState),
	}

	if c.Status == domain.StatusArchived {
		ch.Classification = domain.HealthInactive
		return ch, nil
	}

	handles := c.Handles()
	if len(handles) == 0 {
		ch.Classification = domain.HealthNever
		ch.Issues = append(ch.Issues, "no platform handles configured")
		return ch, nil
	}

	last, err := s.syncLog.LastSuccessByPlatform(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("last success for creator %d: %w", c.ID, err)
	}

	var newest *time.Time
	for _, ph := range handles {
		entry, ok := last[ph.Platform]
		state := domain.PlatformSyncState{Handle: ph.Handle, EverSynced: ok}
		if ok {
			t := entry.CreatedAt
			state.LastSuccess = &t
			state.Age = domain.HumanAge(now.Sub(t))
			if newest == nil || t.After(*newest) {
				newest = &t
			}
		} else {
			ch.Issues = append(ch.Issues, fmt.Sprintf("%s has never synced", ph.Platform))
		}
		ch.Platforms[ph.Platform] = state
	}

	if newest == nil {
		ch.Classification = domain.HealthNever
		return ch, nil
	}

	ch.LastSyncedAt = newest
	age := now.Sub(*newest)
	ch.Classification = s.classify(c.Status, age)

	if ch.Classification != domain.HealthHealthy {
		ch.Issues = append(ch.Issues, fmt.Sprintf("last successful sync %s ago", domain.HumanAge(age)))
	}
	return ch, nil
}

// classify applies the status-dependent freshness thresholds: monitoring
// creators sync far less often than active ones, so their windows are wider.
func (s *HealthService) classify(status domain.CreatorStatus, age time.Duration) domain.HealthStatus {
	healthy, stale := s.cfg.ActiveHealthy, s.cfg.ActiveStale
	if status == domain.StatusMonitoring {
		healthy, stale = s.cfg.MonitorHealthy, s.cfg.MonitorStale
	}

	switch {
	case age <= healthy:
		return domain.HealthHealthy
	case age <= stale:
		return domain.HealthStale
	default:
		return domain.HealthCritical
	}
}

// needsRemediation limits automatic relaunches to active creators that have
// fallen behind. Monitoring creators are reported only; a human decides.
func (s *HealthService) needsRemediation(c *domain.Creator, ch *domain.CreatorHealth) bool {
	if c.Status != domain.StatusActive {
		return false
	}
	switch ch.Classification {
	case domain.HealthStale, domain.HealthCritical, domain.HealthNever:
		return true
	}
	return false
}

func (s *HealthService) remediate(ctx context.Context, c *domain.Creator, ch *domain.CreatorHealth) []domain.LaunchResult {
	var results []domain.LaunchResult
	for _, ph := range c.Handles() {
		res := domain.LaunchResult{
			CreatorID: c.ID,
			Platform:  ph.Platform,
			Handle:    ph.Handle,
			Mode:      domain.ModeNewPosts,
		}

		firstFetch := !ch.Platforms[ph.Platform].EverSynced
		h, err := s.launcher.Launch(ctx, ph.Platform, ph.Handle, domain.ModeNewPosts, c.ID, domain.LaunchOptions{
			FirstFetch:   firstFetch,
			LookbackDays: s.cfg.LookbackMaxDays,
		})
		if err != nil {
			res.Error = err.Error()
			s.logger.Error("remediation launch failed",
				"creator_id", c.ID,
				"platform", ph.Platform,
				"handle", ph.Handle,
				"error", err,
			)
		} else {
			res.RunID = h.RunID
			s.logger.Info("remediation launched",
				"creator_id", c.ID,
				"platform", ph.Platform,
				"handle", ph.Handle,
				"run_id", h.RunID,
				"first_fetch", firstFetch,
			)
		}
		results = append(results, res)
	}
	return results
}
