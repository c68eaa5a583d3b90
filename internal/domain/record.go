package domain

import (
	"fmt"
	"sort"
	"time"
)

// PlatformPost is one post/video on one platform. ID is the platform-native
// identifier and the merge key; count fields always hold the latest reported
// values (monotonicity is not enforced).
type PlatformPost struct {
	ID       string    `json:"id"`
	PostedAt time.Time `json:"posted_at"`
	Views    int64     `json:"views"`
	Likes    int64     `json:"likes"`
	Comments int64     `json:"comments"`
	Shares   int64     `json:"shares"`
	Saves    int64     `json:"saves"`
	URL      string    `json:"url"`
	Caption  string    `json:"caption"`
}

// AuthorMeta is a profile snapshot captured alongside post syncs.
type AuthorMeta struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Followers   int64  `json:"followers"`
	Following   int64  `json:"following"`
	PostCount   int64  `json:"post_count"`
	Verified    bool   `json:"verified"`
	AvatarURL   string `json:"avatar_url"`
}

// PlatformRecord is the per-creator-per-platform aggregate. Posts keep their
// insertion order. The record is written as a whole: the store does a plain
// compare-and-overwrite, so concurrent writers for the same key can race and
// the next sync repairs whatever was lost.
type PlatformRecord struct {
	Platform            Platform       `json:"platform"`
	Handle              string         `json:"handle"`
	Posts               []PlatformPost `json:"posts"`
	Author              *AuthorMeta    `json:"author,omitempty"`
	LastNewPostsSyncAt  *time.Time     `json:"last_new_posts_sync_at,omitempty"`
	LastCountsRefreshAt *time.Time     `json:"last_counts_refresh_at,omitempty"`
}

// RecordKey is the datastore key for a (platform, handle) pair.
func RecordKey(p Platform, handle string) string {
	return fmt.Sprintf("%s_%s", p, handle)
}

func (r *PlatformRecord) Key() string {
	return RecordKey(r.Platform, r.Handle)
}

// PostURLs returns stored post URLs most-recent-first, capped at limit.
// Posts without a URL are skipped since they cannot seed a refresh run.
func (r *PlatformRecord) PostURLs(limit int) []string {
	posts := make([]PlatformPost, len(r.Posts))
	copy(posts, r.Posts)
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].PostedAt.After(posts[j].PostedAt)
	})

	urls := make([]string, 0, limit)
	for _, p := range posts {
		if p.URL == "" {
			continue
		}
		urls = append(urls, p.URL)
		if len(urls) == limit {
			break
		}
	}
	return urls
}
