package domain

import (
	"fmt"
	"time"
)

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthStale    HealthStatus = "stale"
	HealthCritical HealthStatus = "critical"
	HealthNever    HealthStatus = "never"
	HealthInactive HealthStatus = "inactive"
)

// PlatformSyncState is the last-success view for one handle.
type PlatformSyncState struct {
	Handle      string     `json:"handle"`
	LastSuccess *time.Time `json:"last_success,omitempty"`
	Age         string     `json:"age,omitempty"`
	EverSynced  bool       `json:"ever_synced"`
}

// CreatorHealth is a derived view, computed at query time and never persisted.
type CreatorHealth struct {
	CreatorID      int64                          `json:"creator_id"`
	Name           string                         `json:"name"`
	Status         CreatorStatus                  `json:"status"`
	Classification HealthStatus                   `json:"classification"`
	LastSyncedAt   *time.Time                     `json:"last_synced_at,omitempty"`
	Platforms      map[Platform]PlatformSyncState `json:"platforms,omitempty"`
	Issues         []string                       `json:"issues,omitempty"`
	Remediation    []LaunchResult                 `json:"remediation,omitempty"`
}

type HealthReport struct {
	CheckedAt time.Time            `json:"checked_at"`
	Totals    map[HealthStatus]int `json:"totals"`
	Creators  []CreatorHealth      `json:"creators"`
}

// HumanAge renders a duration the way the health endpoints report it:
// hours below two days, days after that.
func HumanAge(d time.Duration) string {
	if d < 48*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
