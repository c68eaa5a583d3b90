package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"creator_sync/internal/domain"
	"creator_sync/internal/scrape"
)

var (
	// ErrUnauthorized rejects a callback whose shared secret does not match.
	ErrUnauthorized = errors.New("webhook secret mismatch")
	// ErrModeMismatch rejects a callback whose dataset shape contradicts the
	// mode declared in the request. The declared mode comes from the query
	// string, not from the run itself, so the shape is cross-checked before
	// anything is merged.
	ErrModeMismatch = errors.New("dataset shape does not match declared mode")
)

// EventRunSucceeded is the only event type that reaches the write path.
// Failed/aborted runs are acknowledged as no-ops; the health monitor notices
// the resulting staleness instead.
const EventRunSucceeded = "ACTOR.RUN.SUCCEEDED"

// CallbackPayload is the body the job API posts on run completion. The
// dataset id has been observed at two locations depending on the payload
// shape, so both are decoded.
type CallbackPayload struct {
	EventType string `json:"eventType"`
	Resource  struct {
		ID               string `json:"id"`
		DefaultDatasetID string `json:"defaultDatasetId"`
	} `json:"resource"`
	EventData struct {
		ActorRunID string `json:"actorRunId"`
		DatasetID  string `json:"datasetId"`
	} `json:"eventData"`
}

func (p *CallbackPayload) DatasetID() string {
	if p.Resource.DefaultDatasetID != "" {
		return p.Resource.DefaultDatasetID
	}
	return p.EventData.DatasetID
}

func (p *CallbackPayload) RunID() string {
	if p.Resource.ID != "" {
		return p.Resource.ID
	}
	return p.EventData.ActorRunID
}

// CallbackRequest is the decoded inbound webhook: routing from the query
// string, payload from the body.
type CallbackRequest struct {
	Platform    domain.Platform
	Handle      string
	Mode        domain.SyncMode
	CreatorID   int64
	Secret      string
	ForceAvatar bool
	Payload     CallbackPayload
}

// IngestResult summarizes one processed callback.
type IngestResult struct {
	Skipped         bool   `json:"skipped"`
	Reason          string `json:"reason,omitempty"`
	ProfileOnly     bool   `json:"profile_only"`
	PostsProcessed  int    `json:"posts_processed"`
	PostsAdded      int    `json:"posts_added"`
	CountsUpdated   int    `json:"counts_updated"`
	TotalPosts      int    `json:"total_posts"`
	AvatarPersisted bool   `json:"avatar_persisted"`
}

// IngestService is the webhook ingestor: it turns a completed external run
// into durable per-creator state. Within one call the pipeline is strictly
// sequential: verify, filter, fetch, classify, map, merge, persist avatar,
// write, log.
type IngestService struct {
	creators     CreatorStore
	records      RecordStore
	syncLog      SyncLogStore
	jobs         JobClient
	avatars      AvatarStore
	secret       string
	datasetLimit int
	logger       *slog.Logger
}

func NewIngestService(
	creators CreatorStore,
	records RecordStore,
	syncLog SyncLogStore,
	jobs JobClient,
	avatars AvatarStore,
	secret string,
	datasetLimit int,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		creators:     creators,
		records:      records,
		syncLog:      syncLog,
		jobs:         jobs,
		avatars:      avatars,
		secret:       secret,
		datasetLimit: datasetLimit,
		logger:       logger.With("component", "ingest"),
	}
}

func (s *IngestService) HandleCallback(ctx context.Context, req CallbackRequest) (*IngestResult, error) {
	if req.Secret != s.secret {
		return nil, ErrUnauthorized
	}
	if !req.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", req.Platform)
	}
	if !req.Mode.Valid() {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}

	logger := s.logger.With(
		"platform", req.Platform,
		"handle", req.Handle,
		"mode", req.Mode,
		"creator_id", req.CreatorID,
	)

	if req.Payload.EventType != EventRunSucceeded {
		logger.Info("ignoring non-success event", "event_type", req.Payload.EventType)
		return &IngestResult{Skipped: true, Reason: fmt.Sprintf("event %q ignored", req.Payload.EventType)}, nil
	}

	datasetID := req.Payload.DatasetID()
	if datasetID == "" {
		return nil, fmt.Errorf("callback for run %q carries no dataset id", req.Payload.RunID())
	}

	items, err := s.jobs.DatasetItems(ctx, datasetID, s.datasetLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch results: %w", err)
	}

	profileOnly := scrape.IsProfilePayload(items)
	if profileOnly && req.Mode == domain.ModeRefreshCounts {
		s.logFailure(ctx, req, "refresh-counts callback delivered a profile-only dataset")
		return nil, fmt.Errorf("%w: refresh-counts callback delivered a profile-only dataset", ErrModeMismatch)
	}

	rec, err := s.records.Get(ctx, req.Platform, req.Handle)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	result := &IngestResult{ProfileOnly: profileOnly}
	now := time.Now().UTC()

	if !profileOnly && req.Mode != domain.ModeAvatarRefresh {
		posts := scrape.MapPosts(items)
		result.PostsProcessed = len(posts)

		switch req.Mode {
		case domain.ModeNewPosts:
			rec.Posts, result.PostsAdded = mergeNewPosts(rec.Posts, posts)
			rec.LastNewPostsSyncAt = &now
		case domain.ModeRefreshCounts:
			rec.Posts, result.CountsUpdated, result.PostsAdded = mergeRefreshCounts(rec.Posts, posts)
			rec.LastCountsRefreshAt = &now
		}
	}

	result.AvatarPersisted = s.applyAuthor(ctx, rec, scrape.MapAuthor(items), req)
	result.TotalPosts = len(rec.Posts)

	if err := s.records.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("write record: %w", err)
	}

	s.touchCreator(ctx, req, rec, now, logger)

	entry := &domain.SyncLogEntry{
		CreatorID:      req.CreatorID,
		Handle:         req.Handle,
		Platform:       req.Platform,
		Mode:           req.Mode,
		Outcome:        domain.OutcomeSucceeded,
		PostsProcessed: result.PostsProcessed,
		TotalPosts:     result.TotalPosts,
		RunID:          req.Payload.RunID(),
		CreatedAt:      now,
	}
	if err := s.syncLog.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append sync log: %w", err)
	}

	logger.Info("callback ingested",
		"run_id", entry.RunID,
		"processed", result.PostsProcessed,
		"added", result.PostsAdded,
		"updated", result.CountsUpdated,
		"total", result.TotalPosts,
		"profile_only", result.ProfileOnly,
	)

	return result, nil
}

// applyAuthor folds a fresh profile snapshot into the record under the
// avatar precedence policy: an explicit refresh always re-persists, the
// very first snapshot persists once, and every routine sync afterwards keeps
// the already-permanent URL no matter what the payload carries.
func (s *IngestService) applyAuthor(ctx context.Context, rec *domain.PlatformRecord, fresh *domain.AuthorMeta, req CallbackRequest) bool {
	force := req.ForceAvatar || req.Mode == domain.ModeAvatarRefresh

	if fresh == nil {
		if !force || rec.Author == nil || rec.Author.AvatarURL == "" {
			return false
		}
		// Forced refresh without a fresh snapshot: re-persist the stored URL.
		fresh = rec.Author
	}

	var prevAvatar string
	if rec.Author != nil {
		prevAvatar = rec.Author.AvatarURL
	}

	source := fresh.AvatarURL
	if source == "" {
		source = prevAvatar
	}

	persisted := false
	avatarURL := prevAvatar

	switch {
	case force && source != "":
		avatarURL, persisted = s.persistAvatar(ctx, req.Platform, req.Handle, source)
	case rec.Author == nil && source != "":
		avatarURL, persisted = s.persistAvatar(ctx, req.Platform, req.Handle, source)
	}

	meta := *fresh
	meta.AvatarURL = avatarURL
	rec.Author = &meta
	return persisted
}

// persistAvatar re-hosts the image, falling back to the source URL when the
// upload fails. A failed persist degrades, it never aborts the ingest.
func (s *IngestService) persistAvatar(ctx context.Context, platform domain.Platform, handle, sourceURL string) (string, bool) {
	url, err := s.avatars.Persist(ctx, platform, handle, sourceURL)
	if err != nil {
		s.logger.Warn("avatar persistence failed, keeping source url",
			"platform", platform,
			"handle", handle,
			"error", err,
		)
		return sourceURL, false
	}
	return url, true
}

// touchCreator updates the advisory last-synced marker and the denormalized
// total post count across both platforms. Advisory only: a failure logs and
// the ingest proceeds.
func (s *IngestService) touchCreator(ctx context.Context, req CallbackRequest, rec *domain.PlatformRecord, now time.Time, logger *slog.Logger) {
	creator, err := s.creators.GetByID(ctx, req.CreatorID)
	if err != nil {
		logger.Warn("creator lookup failed, skipping sync marker", "error", err)
		return
	}

	total := 0
	for _, ph := range creator.Handles() {
		if ph.Platform == rec.Platform {
			total += len(rec.Posts)
			continue
		}
		other, err := s.records.Get(ctx, ph.Platform, ph.Handle)
		if err != nil {
			logger.Warn("record lookup failed while counting posts", "platform", ph.Platform, "error", err)
			continue
		}
		total += len(other.Posts)
	}

	if err := s.creators.TouchSync(ctx, creator.ID, now, total); err != nil {
		logger.Warn("sync marker update failed", "error", err)
	}
}

// logFailure appends a failed entry so that a rejected callback is still
// visible in the sync log. Best-effort.
func (s *IngestService) logFailure(ctx context.Context, req CallbackRequest, msg string) {
	entry := &domain.SyncLogEntry{
		CreatorID: req.CreatorID,
		Handle:    req.Handle,
		Platform:  req.Platform,
		Mode:      req.Mode,
		Outcome:   domain.OutcomeFailed,
		RunID:     req.Payload.RunID(),
		Error:     &msg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.syncLog.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append failure entry", "error", err)
	}
}
