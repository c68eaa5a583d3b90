//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"creator_sync/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB

	creators *CreatorStore
	records  *RecordStore
	syncLog  *SyncLogStore
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "001_init.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.creators = NewCreatorStore(db)
	s.records = NewRecordStore(db)
	s.syncLog = NewSyncLogStore(db)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_log")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM platform_records")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM creators")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) insertCreator(name string, tiktok, instagram *string, status domain.CreatorStatus, syncHour int) int64 {
	var id int64
	err := s.db.QueryRowContext(s.ctx, `
		INSERT INTO creators (name, tiktok_handle, instagram_handle, status, sync_hour)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		name, tiktok, instagram, status, syncHour,
	).Scan(&id)
	s.Require().NoError(err)
	return id
}

func strPtr(v string) *string { return &v }

func (s *PostgresIntegrationSuite) TestCreatorStore_GetByID() {
	id := s.insertCreator("Nia", strPtr("nia"), nil, domain.StatusActive, 9)

	c, err := s.creators.GetByID(s.ctx, id)

	s.Require().NoError(err)
	s.Equal("Nia", c.Name)
	s.Require().NotNil(c.TikTokHandle)
	s.Equal("nia", *c.TikTokHandle)
	s.Nil(c.InstagramHandle)
	s.Equal(9, c.SyncHour)
}

func (s *PostgresIntegrationSuite) TestCreatorStore_GetByID_NotFound() {
	_, err := s.creators.GetByID(s.ctx, 99999)
	s.Error(err)
	s.Contains(err.Error(), "not found")
}

func (s *PostgresIntegrationSuite) TestCreatorStore_ListDueAtHour() {
	s.insertCreator("due", strPtr("due"), nil, domain.StatusActive, 9)
	s.insertCreator("other hour", strPtr("other"), nil, domain.StatusActive, 10)
	s.insertCreator("monitoring", strPtr("mon"), nil, domain.StatusMonitoring, 9)
	s.insertCreator("archived", strPtr("arch"), nil, domain.StatusArchived, 9)

	due, err := s.creators.ListDueAtHour(s.ctx, 9)

	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal("due", due[0].Name)
}

func (s *PostgresIntegrationSuite) TestCreatorStore_ListByStatus() {
	s.insertCreator("a", strPtr("a"), nil, domain.StatusActive, 0)
	s.insertCreator("m", strPtr("m"), nil, domain.StatusMonitoring, 0)
	s.insertCreator("x", strPtr("x"), nil, domain.StatusArchived, 0)

	got, err := s.creators.ListByStatus(s.ctx, domain.StatusActive, domain.StatusMonitoring)

	s.Require().NoError(err)
	s.Len(got, 2)
}

func (s *PostgresIntegrationSuite) TestCreatorStore_TouchSync() {
	id := s.insertCreator("Nia", strPtr("nia"), nil, domain.StatusActive, 9)

	at := time.Now().UTC().Truncate(time.Millisecond)
	s.Require().NoError(s.creators.TouchSync(s.ctx, id, at, 42))

	c, err := s.creators.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(c.LastSyncedAt)
	s.WithinDuration(at, *c.LastSyncedAt, time.Second)
	s.Equal(42, c.TotalPosts)
}

func (s *PostgresIntegrationSuite) TestRecordStore_GetMissingReturnsEmpty() {
	rec, err := s.records.Get(s.ctx, domain.PlatformTikTok, "nobody")

	s.Require().NoError(err)
	s.Equal(domain.PlatformTikTok, rec.Platform)
	s.Equal("nobody", rec.Handle)
	s.Empty(rec.Posts)
	s.Nil(rec.Author)
}

func (s *PostgresIntegrationSuite) TestRecordStore_UpsertRoundTrip() {
	now := time.Now().UTC().Truncate(time.Second)
	rec := &domain.PlatformRecord{
		Platform: domain.PlatformTikTok,
		Handle:   "nia",
		Posts: []domain.PlatformPost{
			{ID: "p1", PostedAt: now.Add(-time.Hour), Views: 100, URL: "https://tiktok.com/v/p1", Caption: "hi"},
			{ID: "p2", PostedAt: now, Views: 5, URL: "https://tiktok.com/v/p2"},
		},
		Author:             &domain.AuthorMeta{DisplayName: "Nia", Followers: 1200, AvatarURL: "https://img.example/nia.jpg"},
		LastNewPostsSyncAt: &now,
	}

	s.Require().NoError(s.records.Upsert(s.ctx, rec))

	got, err := s.records.Get(s.ctx, domain.PlatformTikTok, "nia")
	s.Require().NoError(err)
	s.Len(got.Posts, 2)
	s.Equal("p1", got.Posts[0].ID)
	s.Equal(int64(100), got.Posts[0].Views)
	s.Require().NotNil(got.Author)
	s.Equal(int64(1200), got.Author.Followers)
	s.Require().NotNil(got.LastNewPostsSyncAt)
	s.Nil(got.LastCountsRefreshAt)
}

func (s *PostgresIntegrationSuite) TestRecordStore_UpsertOverwrites() {
	rec := &domain.PlatformRecord{
		Platform: domain.PlatformInstagram,
		Handle:   "nia.gram",
		Posts:    []domain.PlatformPost{{ID: "a", Views: 1}},
	}
	s.Require().NoError(s.records.Upsert(s.ctx, rec))

	rec.Posts = []domain.PlatformPost{{ID: "a", Views: 2}, {ID: "b", Views: 3}}
	s.Require().NoError(s.records.Upsert(s.ctx, rec))

	got, err := s.records.Get(s.ctx, domain.PlatformInstagram, "nia.gram")
	s.Require().NoError(err)
	s.Len(got.Posts, 2)
	s.Equal(int64(2), got.Posts[0].Views)
}

func (s *PostgresIntegrationSuite) TestRecordStore_SameHandleDifferentPlatforms() {
	s.Require().NoError(s.records.Upsert(s.ctx, &domain.PlatformRecord{
		Platform: domain.PlatformTikTok, Handle: "nia",
		Posts: []domain.PlatformPost{{ID: "t1"}},
	}))
	s.Require().NoError(s.records.Upsert(s.ctx, &domain.PlatformRecord{
		Platform: domain.PlatformInstagram, Handle: "nia",
		Posts: []domain.PlatformPost{{ID: "i1"}, {ID: "i2"}},
	}))

	tk, err := s.records.Get(s.ctx, domain.PlatformTikTok, "nia")
	s.Require().NoError(err)
	ig, err := s.records.Get(s.ctx, domain.PlatformInstagram, "nia")
	s.Require().NoError(err)

	s.Len(tk.Posts, 1)
	s.Len(ig.Posts, 2)
}

func (s *PostgresIntegrationSuite) appendEntry(creatorID int64, platform domain.Platform, handle string, mode domain.SyncMode, outcome domain.SyncOutcome, at time.Time) {
	s.Require().NoError(s.syncLog.Append(s.ctx, &domain.SyncLogEntry{
		CreatorID: creatorID,
		Handle:    handle,
		Platform:  platform,
		Mode:      mode,
		Outcome:   outcome,
		RunID:     "run",
		CreatedAt: at,
	}))
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_AppendAssignsID() {
	e := &domain.SyncLogEntry{
		CreatorID: 1,
		Handle:    "nia",
		Platform:  domain.PlatformTikTok,
		Mode:      domain.ModeNewPosts,
		Outcome:   domain.OutcomeSucceeded,
	}
	s.Require().NoError(s.syncLog.Append(s.ctx, e))
	s.NotZero(e.ID)
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_WindowFiltersByModeAndTime() {
	now := time.Now().UTC()
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeNewPosts, domain.OutcomeSucceeded, now.Add(-2*time.Hour))
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeAvatarRefresh, domain.OutcomeSucceeded, now.Add(-1*time.Hour))
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeNewPosts, domain.OutcomeSucceeded, now.Add(-48*time.Hour))

	got, err := s.syncLog.Window(s.ctx, now.Add(-24*time.Hour), []domain.SyncMode{domain.ModeNewPosts, domain.ModeRefreshCounts})

	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(domain.ModeNewPosts, got[0].Mode)
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_LastSuccessByPlatform() {
	now := time.Now().UTC()
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeNewPosts, domain.OutcomeSucceeded, now.Add(-3*time.Hour))
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeNewPosts, domain.OutcomeSucceeded, now.Add(-1*time.Hour))
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeNewPosts, domain.OutcomeFailed, now.Add(-30*time.Minute))
	s.appendEntry(1, domain.PlatformInstagram, "nia.gram", domain.ModeNewPosts, domain.OutcomeSucceeded, now.Add(-5*time.Hour))
	s.appendEntry(2, domain.PlatformTikTok, "other", domain.ModeNewPosts, domain.OutcomeSucceeded, now)

	got, err := s.syncLog.LastSuccessByPlatform(s.ctx, 1)

	s.Require().NoError(err)
	s.Require().Len(got, 2)
	// Failures never advance the last-success marker.
	s.WithinDuration(now.Add(-1*time.Hour), got[domain.PlatformTikTok].CreatedAt, time.Second)
	s.WithinDuration(now.Add(-5*time.Hour), got[domain.PlatformInstagram].CreatedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestSyncLogStore_LastSyncFor() {
	now := time.Now().UTC()
	s.appendEntry(1, domain.PlatformTikTok, "nia", domain.ModeNewPosts, domain.OutcomeSucceeded, now.Add(-6*time.Hour))

	at, err := s.syncLog.LastSyncFor(s.ctx, domain.PlatformTikTok, "nia")
	s.Require().NoError(err)
	s.Require().NotNil(at)
	s.WithinDuration(now.Add(-6*time.Hour), *at, time.Second)

	none, err := s.syncLog.LastSyncFor(s.ctx, domain.PlatformTikTok, "stranger")
	s.Require().NoError(err)
	s.Nil(none)
}
