package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"creator_sync/internal/domain"
)

// SyncLogStore appends sync attempts and answers the read-side queries the
// health monitor, scheduler and cost reporter derive everything from.
// Entries are never updated or deleted.
type SyncLogStore struct {
	db *sqlx.DB
}

func NewSyncLogStore(db *sqlx.DB) *SyncLogStore {
	return &SyncLogStore{db: db}
}

func (s *SyncLogStore) Append(ctx context.Context, e *domain.SyncLogEntry) error {
	query := `
		INSERT INTO sync_log (
			creator_id, handle, platform, mode, outcome, posts_processed, total_posts, run_id, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return s.db.QueryRowContext(ctx, query,
		e.CreatorID,
		e.Handle,
		e.Platform,
		e.Mode,
		e.Outcome,
		e.PostsProcessed,
		e.TotalPosts,
		e.RunID,
		e.Error,
		createdAt,
	).Scan(&e.ID)
}

const syncLogColumns = `id, creator_id, handle, platform, mode, outcome, posts_processed, total_posts, run_id, error, created_at`

// Window returns entries created since the given time, optionally filtered
// by mode, oldest first.
func (s *SyncLogStore) Window(ctx context.Context, since time.Time, modes []domain.SyncMode) ([]domain.SyncLogEntry, error) {
	query := `
		SELECT ` + syncLogColumns + `
		FROM sync_log
		WHERE created_at >= $1
		ORDER BY created_at`
	args := []interface{}{since}

	if len(modes) > 0 {
		vals := make([]string, len(modes))
		for i, m := range modes {
			vals[i] = string(m)
		}
		query = `
		SELECT ` + syncLogColumns + `
		FROM sync_log
		WHERE created_at >= $1 AND mode = ANY($2)
		ORDER BY created_at`
		args = append(args, pq.Array(vals))
	}

	var entries []domain.SyncLogEntry
	err := s.db.SelectContext(ctx, &entries, query, args...)
	return entries, err
}

// LastSuccessByPlatform returns the most recent succeeded entry per platform
// for one creator.
func (s *SyncLogStore) LastSuccessByPlatform(ctx context.Context, creatorID int64) (map[domain.Platform]domain.SyncLogEntry, error) {
	query := `
		SELECT DISTINCT ON (platform) ` + syncLogColumns + `
		FROM sync_log
		WHERE creator_id = $1 AND outcome = $2
		ORDER BY platform, created_at DESC`

	var entries []domain.SyncLogEntry
	if err := s.db.SelectContext(ctx, &entries, query, creatorID, domain.OutcomeSucceeded); err != nil {
		return nil, err
	}

	result := make(map[domain.Platform]domain.SyncLogEntry, len(entries))
	for _, e := range entries {
		result[e.Platform] = e
	}
	return result, nil
}

// LastSyncFor returns when a handle last synced successfully on a platform,
// or nil when it never has. The scheduler widens its lookback from this.
func (s *SyncLogStore) LastSyncFor(ctx context.Context, platform domain.Platform, handle string) (*time.Time, error) {
	var at time.Time
	query := `
		SELECT created_at
		FROM sync_log
		WHERE platform = $1 AND handle = $2 AND outcome = $3
		ORDER BY created_at DESC
		LIMIT 1`

	err := s.db.GetContext(ctx, &at, query, platform, handle, domain.OutcomeSucceeded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &at, nil
}
