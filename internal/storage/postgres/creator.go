package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"creator_sync/internal/domain"
)

type CreatorStore struct {
	db *sqlx.DB
}

func NewCreatorStore(db *sqlx.DB) *CreatorStore {
	return &CreatorStore{db: db}
}

const creatorColumns = `id, name, tiktok_handle, instagram_handle, status, sync_hour, last_synced_at, total_posts, created_at, updated_at`

func (s *CreatorStore) GetByID(ctx context.Context, id int64) (*domain.Creator, error) {
	var c domain.Creator
	query := fmt.Sprintf(`SELECT %s FROM creators WHERE id = $1`, creatorColumns)

	err := s.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("creator %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *CreatorStore) ListByStatus(ctx context.Context, statuses ...domain.CreatorStatus) ([]domain.Creator, error) {
	query := fmt.Sprintf(`SELECT %s FROM creators ORDER BY id`, creatorColumns)
	args := []interface{}{}

	if len(statuses) > 0 {
		vals := make([]string, len(statuses))
		for i, st := range statuses {
			vals[i] = string(st)
		}
		query = fmt.Sprintf(`SELECT %s FROM creators WHERE status = ANY($1) ORDER BY id`, creatorColumns)
		args = append(args, pq.Array(vals))
	}

	var creators []domain.Creator
	err := s.db.SelectContext(ctx, &creators, query, args...)
	return creators, err
}

// ListDueAtHour returns the active creators whose sync hour matches the
// current hour bucket. This is the fleet's load-staggering selection.
func (s *CreatorStore) ListDueAtHour(ctx context.Context, hour int) ([]domain.Creator, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM creators WHERE status = $1 AND sync_hour = $2 ORDER BY id`,
		creatorColumns,
	)

	var creators []domain.Creator
	err := s.db.SelectContext(ctx, &creators, query, domain.StatusActive, hour)
	return creators, err
}

// TouchSync bumps the advisory last-synced marker and the denormalized
// total post count after a successful ingest.
func (s *CreatorStore) TouchSync(ctx context.Context, id int64, at time.Time, totalPosts int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE creators SET last_synced_at = $2, total_posts = $3, updated_at = now() WHERE id = $1`,
		id, at, totalPosts,
	)
	return err
}
