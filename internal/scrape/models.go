package scrape

// runEnvelope wraps every run-shaped response from the job API.
type runEnvelope struct {
	Data runData `json:"data"`
}

type runData struct {
	ID               string   `json:"id"`
	ActID            string   `json:"actId"`
	Status           string   `json:"status"`
	DefaultDatasetID string   `json:"defaultDatasetId"`
	UsageTotalUSD    *float64 `json:"usageTotalUsd"`
}

// Run statuses reported by the job API.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusReady     = "READY"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
	RunStatusAborted   = "ABORTED"
	RunStatusTimedOut  = "TIMED-OUT"
)

// RawItem is one record of a run's result dataset. The two platform actors
// and the profile-details actors spell their fields differently, so this
// shape carries all spellings and the mapper picks whichever is set.
// Follower-count fields are pointers: their presence (not value) is what
// classifies a payload as profile-only.
type RawItem struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Caption       string `json:"caption"`
	URL           string `json:"url"`
	WebVideoURL   string `json:"webVideoUrl"`
	CreateTime    int64  `json:"createTime"`
	CreateTimeISO string `json:"createTimeISO"`
	Timestamp     string `json:"timestamp"`

	PlayCount      int64 `json:"playCount"`
	VideoPlayCount int64 `json:"videoPlayCount"`
	VideoViewCount int64 `json:"videoViewCount"`
	DiggCount      int64 `json:"diggCount"`
	LikesCount     int64 `json:"likesCount"`
	CommentCount   int64 `json:"commentCount"`
	CommentsCount  int64 `json:"commentsCount"`
	ShareCount     int64 `json:"shareCount"`
	ResharesCount  int64 `json:"resharesCount"`
	CollectCount   int64 `json:"collectCount"`

	AuthorMeta *RawAuthor `json:"authorMeta"`

	// Profile-details payload fields.
	FullName       string `json:"fullName"`
	NickName       string `json:"nickName"`
	Biography      string `json:"biography"`
	Signature      string `json:"signature"`
	Fans           *int64 `json:"fans"`
	FollowersCount *int64 `json:"followersCount"`
	Following      int64  `json:"following"`
	FollowsCount   int64  `json:"followsCount"`
	Video          int64  `json:"video"`
	PostsCount     int64  `json:"postsCount"`
	Verified       bool   `json:"verified"`
	Avatar         string `json:"avatar"`
	ProfilePicURL  string `json:"profilePicUrl"`
}

// RawAuthor is the author snapshot embedded in post records.
type RawAuthor struct {
	Name      string `json:"name"`
	NickName  string `json:"nickName"`
	Signature string `json:"signature"`
	Fans      int64  `json:"fans"`
	Following int64  `json:"following"`
	Video     int64  `json:"video"`
	Verified  bool   `json:"verified"`
	Avatar    string `json:"avatar"`
}

// hasFollowerFields reports whether the record carries follower-count-like
// fields of a profile-details payload.
func (r *RawItem) hasFollowerFields() bool {
	return r.Fans != nil || r.FollowersCount != nil
}

// hasPostFields reports whether the record looks like a post.
func (r *RawItem) hasPostFields() bool {
	return r.WebVideoURL != "" || (r.URL != "" && r.ID != "" && !r.hasFollowerFields())
}
