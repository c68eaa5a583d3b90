package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"creator_sync/internal/domain"
)

// RecordStore owns the per-creator-per-platform aggregates, keyed
// "{platform}_{handle}". Posts and author snapshot live in jsonb columns;
// a write overwrites the whole row. There is deliberately no row lock:
// the merge functions are idempotent, so a lost update between two
// near-simultaneous callbacks is repaired by the next cycle.
type RecordStore struct {
	db *sqlx.DB
}

func NewRecordStore(db *sqlx.DB) *RecordStore {
	return &RecordStore{db: db}
}

type recordRow struct {
	Key                 string       `db:"key"`
	Platform            string       `db:"platform"`
	Handle              string       `db:"handle"`
	Posts               []byte       `db:"posts"`
	Author              []byte       `db:"author"`
	LastNewPostsSyncAt  sql.NullTime `db:"last_new_posts_sync_at"`
	LastCountsRefreshAt sql.NullTime `db:"last_counts_refresh_at"`
}

// Get returns the stored record, or an empty record for a key never written.
func (s *RecordStore) Get(ctx context.Context, platform domain.Platform, handle string) (*domain.PlatformRecord, error) {
	var row recordRow
	query := `
		SELECT key, platform, handle, posts, author, last_new_posts_sync_at, last_counts_refresh_at
		FROM platform_records
		WHERE key = $1`

	err := s.db.GetContext(ctx, &row, query, domain.RecordKey(platform, handle))
	if err == sql.ErrNoRows {
		return &domain.PlatformRecord{Platform: platform, Handle: handle}, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &domain.PlatformRecord{Platform: platform, Handle: handle}
	if len(row.Posts) > 0 {
		if err := json.Unmarshal(row.Posts, &rec.Posts); err != nil {
			return nil, fmt.Errorf("decode posts for %s: %w", row.Key, err)
		}
	}
	if len(row.Author) > 0 && string(row.Author) != "null" {
		rec.Author = &domain.AuthorMeta{}
		if err := json.Unmarshal(row.Author, rec.Author); err != nil {
			return nil, fmt.Errorf("decode author for %s: %w", row.Key, err)
		}
	}
	if row.LastNewPostsSyncAt.Valid {
		t := row.LastNewPostsSyncAt.Time
		rec.LastNewPostsSyncAt = &t
	}
	if row.LastCountsRefreshAt.Valid {
		t := row.LastCountsRefreshAt.Time
		rec.LastCountsRefreshAt = &t
	}
	return rec, nil
}

// Upsert writes the whole record.
func (s *RecordStore) Upsert(ctx context.Context, rec *domain.PlatformRecord) error {
	posts, err := json.Marshal(rec.Posts)
	if err != nil {
		return fmt.Errorf("encode posts: %w", err)
	}
	var author []byte
	if rec.Author != nil {
		author, err = json.Marshal(rec.Author)
		if err != nil {
			return fmt.Errorf("encode author: %w", err)
		}
	}

	query := `
		INSERT INTO platform_records (
			key, platform, handle, posts, author, last_new_posts_sync_at, last_counts_refresh_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (key) DO UPDATE SET
			posts = EXCLUDED.posts,
			author = EXCLUDED.author,
			last_new_posts_sync_at = EXCLUDED.last_new_posts_sync_at,
			last_counts_refresh_at = EXCLUDED.last_counts_refresh_at,
			updated_at = now()`

	_, err = s.db.ExecContext(ctx, query,
		rec.Key(),
		rec.Platform,
		rec.Handle,
		posts,
		nullableJSON(author),
		nullableTime(rec.LastNewPostsSyncAt),
		nullableTime(rec.LastCountsRefreshAt),
	)
	return err
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
