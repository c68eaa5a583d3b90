package domain

import "time"

// CostRow aggregates the trailing-window sync activity for one handle on one
// platform. CostKnown is false when at least one run's cost lookup failed;
// the digest renders that as "?" instead of silently understating spend.
type CostRow struct {
	Handle         string   `json:"handle"`
	Platform       Platform `json:"platform"`
	PostsAdded     int      `json:"posts_added"`
	PostsRefreshed int      `json:"posts_refreshed"`
	CostUSD        float64  `json:"cost_usd"`
	CostKnown      bool     `json:"cost_known"`
	Succeeded      int      `json:"succeeded"`
	Failed         int      `json:"failed"`
}

type CostReport struct {
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	Rows                []CostRow `json:"rows"`
	TotalCostUSD        float64   `json:"total_cost_usd"`
	ProjectedMonthlyUSD float64   `json:"projected_monthly_usd"`
	UnknownCosts        int       `json:"unknown_costs"`
	TotalNewPosts       int       `json:"total_new_posts"`
	TotalRefreshed      int       `json:"total_refreshed"`
	FailingHandles      []string  `json:"failing_handles,omitempty"`
}
