package domain

import "time"

type SyncOutcome string

const (
	OutcomeSucceeded SyncOutcome = "succeeded"
	OutcomeFailed    SyncOutcome = "failed"
)

// SyncLogEntry is an immutable fact about one sync attempt. A succeeded entry
// with PostsProcessed == 0 means the run completed but found nothing new,
// which is deliberately distinguishable from no entry at all.
type SyncLogEntry struct {
	ID             int64       `db:"id"`
	CreatorID      int64       `db:"creator_id"`
	Handle         string      `db:"handle"`
	Platform       Platform    `db:"platform"`
	Mode           SyncMode    `db:"mode"`
	Outcome        SyncOutcome `db:"outcome"`
	PostsProcessed int         `db:"posts_processed"`
	TotalPosts     int         `db:"total_posts"`
	RunID          string      `db:"run_id"`
	Error          *string     `db:"error"`
	CreatedAt      time.Time   `db:"created_at"`
}

// RunHandle identifies a launched external scrape job.
type RunHandle struct {
	RunID     string
	DatasetID string
}

// LaunchOptions tune a single run launch.
type LaunchOptions struct {
	// FirstFetch requests a deeper backfill and a parallel profile-details run.
	FirstFetch bool
	// PostURLs seeds a refresh-counts run with the already-known posts.
	PostURLs []string
	// LookbackDays bounds how far back a new-posts crawl reaches.
	LookbackDays int
}

// LaunchResult is one entry of a fan-out summary: either a run id or an error.
type LaunchResult struct {
	CreatorID int64    `json:"creator_id"`
	Handle    string   `json:"handle"`
	Platform  Platform `json:"platform"`
	Mode      SyncMode `json:"mode"`
	RunID     string   `json:"run_id,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// FleetSummary reports one fleet cycle or on-demand resync.
type FleetSummary struct {
	Hour     int            `json:"hour"`
	Selected int            `json:"selected"`
	Launched int            `json:"launched"`
	Failed   int            `json:"failed"`
	Results  []LaunchResult `json:"results"`
}
