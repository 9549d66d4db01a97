// Package models defines server-side data models persisted in the database.
package models

import "time"

// Subscription tiers. The set is closed; capability checks are exact-match
// and never hierarchical. An unknown tier carries no capabilities.
const (
	TierDataOwner  = "owner-tier"
	TierResearcher = "grantee-tier"
	TierAnalyst    = "analytics-tier"
)

// Profile is the resolved identity of a request principal. The profile store
// is external; the core only ever reads these rows.
type Profile struct {
	ID        string
	Email     string
	Tier      string
	CreatedAt time.Time
}
