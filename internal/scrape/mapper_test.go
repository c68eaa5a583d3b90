package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func i64(v int64) *int64 { return &v }

func TestIsProfilePayload(t *testing.T) {
	profile := []RawItem{{NickName: "nia", Fans: i64(1200), Signature: "bio"}}
	assert.True(t, IsProfilePayload(profile))

	posts := []RawItem{{ID: "p1", WebVideoURL: "https://tiktok.com/v/p1"}}
	assert.False(t, IsProfilePayload(posts))

	// Mixed payloads are treated as post payloads.
	mixed := append(profile, posts...)
	assert.False(t, IsProfilePayload(mixed))

	assert.False(t, IsProfilePayload(nil))

	// Instagram profile actor spells followers differently.
	igProfile := []RawItem{{FullName: "Nia", FollowersCount: i64(900)}}
	assert.True(t, IsProfilePayload(igProfile))
}

func TestMapPosts_FieldSpellings(t *testing.T) {
	items := []RawItem{
		{
			// TikTok spelling.
			ID:            "t1",
			WebVideoURL:   "https://tiktok.com/v/t1",
			Text:          "tiktok caption",
			CreateTimeISO: "2025-05-01T12:00:00Z",
			PlayCount:     1000,
			DiggCount:     50,
			CommentCount:  7,
			ShareCount:    3,
			CollectCount:  2,
		},
		{
			// Instagram spelling.
			ID:             "i1",
			URL:            "https://instagram.com/p/i1",
			Caption:        "insta caption",
			Timestamp:      "2025-05-02T08:30:00Z",
			VideoViewCount: 500,
			LikesCount:     40,
			CommentsCount:  5,
			ResharesCount:  1,
		},
	}

	posts := MapPosts(items)
	require.Len(t, posts, 2)

	tt := posts[0]
	assert.Equal(t, "t1", tt.ID)
	assert.Equal(t, "https://tiktok.com/v/t1", tt.URL)
	assert.Equal(t, "tiktok caption", tt.Caption)
	assert.Equal(t, int64(1000), tt.Views)
	assert.Equal(t, int64(50), tt.Likes)
	assert.Equal(t, int64(7), tt.Comments)
	assert.Equal(t, int64(3), tt.Shares)
	assert.Equal(t, int64(2), tt.Saves)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), tt.PostedAt)

	ig := posts[1]
	assert.Equal(t, "i1", ig.ID)
	assert.Equal(t, int64(500), ig.Views)
	assert.Equal(t, int64(40), ig.Likes)
	assert.Equal(t, int64(5), ig.Comments)
	assert.Equal(t, int64(1), ig.Shares)
	assert.Equal(t, time.Date(2025, 5, 2, 8, 30, 0, 0, time.UTC), ig.PostedAt)
}

func TestMapPosts_DiscardsRecordsWithoutID(t *testing.T) {
	items := []RawItem{
		{WebVideoURL: "https://tiktok.com/v/x"},
		{ID: "ok", WebVideoURL: "https://tiktok.com/v/ok"},
	}

	posts := MapPosts(items)
	require.Len(t, posts, 1)
	assert.Equal(t, "ok", posts[0].ID)
}

func TestMapPosts_UnixFallbackTimestamp(t *testing.T) {
	items := []RawItem{{ID: "p", WebVideoURL: "https://tiktok.com/v/p", CreateTime: 1714560000}}

	posts := MapPosts(items)
	require.Len(t, posts, 1)
	assert.Equal(t, time.Unix(1714560000, 0).UTC(), posts[0].PostedAt)
}

func TestMapAuthor_FromProfileRecord(t *testing.T) {
	items := []RawItem{{
		NickName:  "nia",
		Signature: "dancer",
		Fans:      i64(120000),
		Following: 300,
		Video:     87,
		Verified:  true,
		Avatar:    "https://cdn.tiktok.com/expiring/nia.jpg",
	}}

	meta := MapAuthor(items)
	require.NotNil(t, meta)
	assert.Equal(t, "nia", meta.DisplayName)
	assert.Equal(t, "dancer", meta.Bio)
	assert.Equal(t, int64(120000), meta.Followers)
	assert.Equal(t, int64(300), meta.Following)
	assert.Equal(t, int64(87), meta.PostCount)
	assert.True(t, meta.Verified)
	assert.Equal(t, "https://cdn.tiktok.com/expiring/nia.jpg", meta.AvatarURL)
}

func TestMapAuthor_FromEmbeddedPostAuthor(t *testing.T) {
	items := []RawItem{{
		ID:          "p1",
		WebVideoURL: "https://tiktok.com/v/p1",
		AuthorMeta: &RawAuthor{
			NickName: "nia",
			Fans:     999,
			Avatar:   "https://cdn.tiktok.com/expiring/nia.jpg",
		},
	}}

	meta := MapAuthor(items)
	require.NotNil(t, meta)
	assert.Equal(t, "nia", meta.DisplayName)
	assert.Equal(t, int64(999), meta.Followers)
}

func TestMapAuthor_NoneAvailable(t *testing.T) {
	items := []RawItem{{ID: "p1", WebVideoURL: "https://tiktok.com/v/p1"}}
	assert.Nil(t, MapAuthor(items))
}
