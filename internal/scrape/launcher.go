package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"creator_sync/internal/config"
	"creator_sync/internal/domain"
)

// Launcher starts scrape runs for a creator handle. It never waits for run
// completion and never retries: the webhook ingestor picks up results and
// the scheduler/health monitor own re-invocation.
type Launcher struct {
	client        *Client
	cfg           config.ScrapeConfig
	webhookBase   string
	webhookSecret string
	logger        *slog.Logger
}

func NewLauncher(client *Client, cfg config.ScrapeConfig, server config.ServerConfig, logger *slog.Logger) *Launcher {
	return &Launcher{
		client:        client,
		cfg:           cfg,
		webhookBase:   server.PublicBaseURL,
		webhookSecret: server.WebhookSecret,
		logger:        logger.With("component", "launcher"),
	}
}

// Launch submits one run for platform+handle+mode and returns once the job
// API acknowledges it. In first-fetch new-posts mode it additionally fires a
// detached profile-details run; that run's failure only logs.
func (l *Launcher) Launch(ctx context.Context, platform domain.Platform, handle string, mode domain.SyncMode, creatorID int64, opts domain.LaunchOptions) (domain.RunHandle, error) {
	if !platform.Valid() {
		return domain.RunHandle{}, fmt.Errorf("unknown platform %q", platform)
	}

	actorID, input, err := l.buildRun(platform, handle, mode, opts)
	if err != nil {
		return domain.RunHandle{}, err
	}
	input["webhooks"] = l.webhookSpec(platform, handle, mode, creatorID)

	handle_, err := l.client.StartRun(ctx, actorID, input)
	if err != nil {
		return domain.RunHandle{}, fmt.Errorf("launch %s %s for %s: %w", platform, mode, handle, err)
	}

	l.logger.Info("run launched",
		"platform", platform,
		"handle", handle,
		"mode", mode,
		"run_id", handle_.RunID,
	)

	if mode == domain.ModeNewPosts && opts.FirstFetch {
		if err := l.launchProfileDetails(ctx, platform, handle, creatorID); err != nil {
			l.logger.Warn("profile details launch failed", "platform", platform, "handle", handle, "error", err)
		}
	}

	return handle_, nil
}

func (l *Launcher) buildRun(platform domain.Platform, handle string, mode domain.SyncMode, opts domain.LaunchOptions) (string, map[string]any, error) {
	switch mode {
	case domain.ModeNewPosts:
		limit := l.cfg.RecentLimit
		if opts.FirstFetch {
			limit = l.cfg.BackfillLimit
		}
		lookback := opts.LookbackDays
		if lookback <= 0 {
			lookback = 30
		}
		switch platform {
		case domain.PlatformTikTok:
			return l.cfg.TikTokActor, map[string]any{
				"profiles":              []string{handle},
				"resultsPerPage":        limit,
				"oldestPostDateUnified": fmt.Sprintf("%d days", lookback),
			}, nil
		case domain.PlatformInstagram:
			return l.cfg.InstagramActor, map[string]any{
				"directUrls":         []string{profileURL(handle)},
				"resultsType":        "posts",
				"resultsLimit":       limit,
				"onlyPostsNewerThan": fmt.Sprintf("%d days", lookback),
			}, nil
		}

	case domain.ModeRefreshCounts:
		if len(opts.PostURLs) == 0 {
			return "", nil, fmt.Errorf("refresh-counts launch for %s requires post urls", handle)
		}
		switch platform {
		case domain.PlatformTikTok:
			return l.cfg.TikTokActor, map[string]any{
				"postURLs": opts.PostURLs,
			}, nil
		case domain.PlatformInstagram:
			return l.cfg.InstagramActor, map[string]any{
				"directUrls":  opts.PostURLs,
				"resultsType": "details",
			}, nil
		}

	case domain.ModeAvatarRefresh:
		return l.profileActor(platform), l.profileInput(platform, handle), nil
	}

	return "", nil, fmt.Errorf("unsupported mode %q", mode)
}

// launchProfileDetails starts the parallel metadata run of a first fetch. Its
// callback declares new-posts mode; the ingestor classifies the payload as
// profile-only from its shape.
func (l *Launcher) launchProfileDetails(ctx context.Context, platform domain.Platform, handle string, creatorID int64) error {
	input := l.profileInput(platform, handle)
	input["webhooks"] = l.webhookSpec(platform, handle, domain.ModeNewPosts, creatorID)

	_, err := l.client.StartRun(ctx, l.profileActor(platform), input)
	return err
}

func (l *Launcher) profileActor(platform domain.Platform) string {
	if platform == domain.PlatformTikTok {
		return l.cfg.TikTokProfileActor
	}
	return l.cfg.InstagramProfileActor
}

func (l *Launcher) profileInput(platform domain.Platform, handle string) map[string]any {
	if platform == domain.PlatformTikTok {
		return map[string]any{"profiles": []string{handle}}
	}
	return map[string]any{"usernames": []string{handle}}
}

// webhookSpec registers the callback for terminal run states. Non-success
// events reach the ingestor too and are acknowledged as no-ops there, which
// keeps staleness detection the only failure signal.
func (l *Launcher) webhookSpec(platform domain.Platform, handle string, mode domain.SyncMode, creatorID int64) []map[string]any {
	return []map[string]any{
		{
			"eventTypes": []string{
				"ACTOR.RUN.SUCCEEDED",
				"ACTOR.RUN.FAILED",
				"ACTOR.RUN.ABORTED",
				"ACTOR.RUN.TIMED_OUT",
			},
			"requestUrl": l.callbackURL(platform, handle, mode, creatorID),
		},
	}
}

func (l *Launcher) callbackURL(platform domain.Platform, handle string, mode domain.SyncMode, creatorID int64) string {
	q := url.Values{}
	q.Set("handle", handle)
	q.Set("mode", string(mode))
	q.Set("creatorId", fmt.Sprintf("%d", creatorID))
	q.Set("secret", l.webhookSecret)
	return fmt.Sprintf("%s/sync/%s/webhook?%s", l.webhookBase, platform, q.Encode())
}

func profileURL(handle string) string {
	return fmt.Sprintf("https://www.instagram.com/%s/", handle)
}
