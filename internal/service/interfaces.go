package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"creator_sync/internal/domain"
	"creator_sync/internal/scrape"
)

type CreatorStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Creator, error)
	ListByStatus(ctx context.Context, statuses ...domain.CreatorStatus) ([]domain.Creator, error)
	ListDueAtHour(ctx context.Context, hour int) ([]domain.Creator, error)
	TouchSync(ctx context.Context, id int64, at time.Time, totalPosts int) error
}

type RecordStore interface {
	Get(ctx context.Context, platform domain.Platform, handle string) (*domain.PlatformRecord, error)
	Upsert(ctx context.Context, rec *domain.PlatformRecord) error
}

type SyncLogStore interface {
	Append(ctx context.Context, e *domain.SyncLogEntry) error
	Window(ctx context.Context, since time.Time, modes []domain.SyncMode) ([]domain.SyncLogEntry, error)
	LastSuccessByPlatform(ctx context.Context, creatorID int64) (map[domain.Platform]domain.SyncLogEntry, error)
	LastSyncFor(ctx context.Context, platform domain.Platform, handle string) (*time.Time, error)
}

type Launcher interface {
	Launch(ctx context.Context, platform domain.Platform, handle string, mode domain.SyncMode, creatorID int64, opts domain.LaunchOptions) (domain.RunHandle, error)
}

type JobClient interface {
	DatasetItems(ctx context.Context, datasetID string, limit int) ([]scrape.RawItem, error)
	RunCost(ctx context.Context, runID string) (float64, error)
}

type AvatarStore interface {
	Persist(ctx context.Context, platform domain.Platform, handle, sourceURL string) (string, error)
}

type Messenger interface {
	SendMessage(ctx context.Context, channel, text string) error
	Close() error
}
