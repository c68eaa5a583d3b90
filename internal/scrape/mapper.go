package scrape

import (
	"time"

	"creator_sync/internal/domain"
)

// IsProfilePayload classifies a dataset structurally: every record carries
// follower-count-like fields and none looks like a post. The profile-details
// actors provide no explicit discriminator, so shape is all there is.
func IsProfilePayload(items []RawItem) bool {
	if len(items) == 0 {
		return false
	}
	for i := range items {
		if items[i].hasPostFields() || !items[i].hasFollowerFields() {
			return false
		}
	}
	return true
}

// MapPosts converts raw dataset records to domain posts. Records without a
// stable id are discarded.
func MapPosts(items []RawItem) []domain.PlatformPost {
	posts := make([]domain.PlatformPost, 0, len(items))
	for i := range items {
		item := &items[i]
		if item.ID == "" || !item.hasPostFields() {
			continue
		}
		posts = append(posts, domain.PlatformPost{
			ID:       item.ID,
			PostedAt: item.postedAt(),
			Views:    firstNonZero(item.PlayCount, item.VideoPlayCount, item.VideoViewCount),
			Likes:    firstNonZero(item.DiggCount, item.LikesCount),
			Comments: firstNonZero(item.CommentCount, item.CommentsCount),
			Shares:   firstNonZero(item.ShareCount, item.ResharesCount),
			Saves:    item.CollectCount,
			URL:      item.postURL(),
			Caption:  item.caption(),
		})
	}
	return posts
}

// MapAuthor extracts a profile snapshot: from a profile-details record when
// the payload is profile-only, otherwise from the first post's embedded
// author metadata. Returns nil when the payload carries neither.
func MapAuthor(items []RawItem) *domain.AuthorMeta {
	for i := range items {
		item := &items[i]
		if item.hasFollowerFields() {
			meta := &domain.AuthorMeta{
				DisplayName: firstNonEmpty(item.FullName, item.NickName),
				Bio:         firstNonEmpty(item.Biography, item.Signature),
				Following:   firstNonZero(item.Following, item.FollowsCount),
				PostCount:   firstNonZero(item.Video, item.PostsCount),
				Verified:    item.Verified,
				AvatarURL:   firstNonEmpty(item.Avatar, item.ProfilePicURL),
			}
			if item.Fans != nil {
				meta.Followers = *item.Fans
			} else if item.FollowersCount != nil {
				meta.Followers = *item.FollowersCount
			}
			return meta
		}
		if item.AuthorMeta != nil {
			a := item.AuthorMeta
			return &domain.AuthorMeta{
				DisplayName: a.NickName,
				Bio:         a.Signature,
				Followers:   a.Fans,
				Following:   a.Following,
				PostCount:   a.Video,
				Verified:    a.Verified,
				AvatarURL:   a.Avatar,
			}
		}
	}
	return nil
}

func (r *RawItem) postedAt() time.Time {
	if r.CreateTimeISO != "" {
		if t, err := time.Parse(time.RFC3339, r.CreateTimeISO); err == nil {
			return t
		}
	}
	if r.CreateTime > 0 {
		return time.Unix(r.CreateTime, 0).UTC()
	}
	if r.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, r.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (r *RawItem) postURL() string {
	if r.WebVideoURL != "" {
		return r.WebVideoURL
	}
	return r.URL
}

func (r *RawItem) caption() string {
	if r.Text != "" {
		return r.Text
	}
	return r.Caption
}

func firstNonZero(vals ...int64) int64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
