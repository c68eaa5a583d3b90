package domain

import "time"

type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

func (p Platform) Valid() bool {
	return p == PlatformTikTok || p == PlatformInstagram
}

type SyncMode string

const (
	ModeNewPosts      SyncMode = "new-posts"
	ModeRefreshCounts SyncMode = "refresh-counts"
	ModeAvatarRefresh SyncMode = "avatar-refresh"
)

func (m SyncMode) Valid() bool {
	return m == ModeNewPosts || m == ModeRefreshCounts || m == ModeAvatarRefresh
}

type CreatorStatus string

const (
	StatusActive     CreatorStatus = "active"
	StatusMonitoring CreatorStatus = "monitoring"
	StatusArchived   CreatorStatus = "archived"
)

// Creator is one tracked entity. SyncHour staggers scheduled syncs across the
// day: the fleet cycle only picks creators whose hour matches the current one
// in the reference timezone.
type Creator struct {
	ID              int64         `db:"id"`
	Name            string        `db:"name"`
	TikTokHandle    *string       `db:"tiktok_handle"`
	InstagramHandle *string       `db:"instagram_handle"`
	Status          CreatorStatus `db:"status"`
	SyncHour        int           `db:"sync_hour"`
	LastSyncedAt    *time.Time    `db:"last_synced_at"`
	TotalPosts      int           `db:"total_posts"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// Handles returns the per-platform handles the creator actually has,
// in a fixed platform order.
func (c *Creator) Handles() []PlatformHandle {
	var out []PlatformHandle
	if c.TikTokHandle != nil && *c.TikTokHandle != "" {
		out = append(out, PlatformHandle{Platform: PlatformTikTok, Handle: *c.TikTokHandle})
	}
	if c.InstagramHandle != nil && *c.InstagramHandle != "" {
		out = append(out, PlatformHandle{Platform: PlatformInstagram, Handle: *c.InstagramHandle})
	}
	return out
}

func (c *Creator) Handle(p Platform) (string, bool) {
	for _, ph := range c.Handles() {
		if ph.Platform == p {
			return ph.Handle, true
		}
	}
	return "", false
}

type PlatformHandle struct {
	Platform Platform
	Handle   string
}
