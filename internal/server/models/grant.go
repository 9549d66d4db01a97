package models

import "time"

// Grant statuses. Expiry is a derived, read-time state: an "active" row whose
// ExpiresAt has passed no longer authorizes anything, with or without a sweep.
const (
	GrantStatusActive  = "active"
	GrantStatusRevoked = "revoked"
	GrantStatusExpired = "expired"
)

// Grant access levels.
const (
	AccessLevelRead      = "read"
	AccessLevelReadWrite = "read-write"
)

// Grant records a time-bounded, revocable authorization for GranteeID to read
// a file owned by GrantorID. At most one active grant may exist per
// (FileID, GranteeID) pair.
type Grant struct {
	ID          string
	FileID      string
	GrantorID   string
	GranteeID   string
	AccessLevel string
	Status      string
	ExpiresAt   time.Time
	CreatedAt   time.Time

	// Revocation metadata, set only when Status is revoked.
	RevokedAt     *time.Time
	RevokedBy     string
	RevokedReason string
}

// Expired reports whether the grant's expiry has passed at the given instant.
func (g *Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}
