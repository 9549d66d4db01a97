// Package authz implements the tier-based capability rules. Checks are
// exact-match against a closed tier set; no tier inherits another's
// capabilities, and a missing or unknown tier carries none.
package authz

import "github.com/genovault/genovault/internal/server/models"

// CanUpload reports whether a profile may ingest new files.
// Only the data-owner tier uploads.
func CanUpload(p *models.Profile) bool {
	return p != nil && p.Tier == models.TierDataOwner
}

// CanGrant reports whether grantor may share a file with grantee.
// Sharing is cross-tier only: a data owner grants to a researcher.
// Same-tier peer sharing is rejected.
func CanGrant(grantor, grantee *models.Profile) bool {
	if grantor == nil || grantee == nil {
		return false
	}
	return grantor.Tier == models.TierDataOwner && grantee.Tier == models.TierResearcher
}

// EligibleGrantee reports whether a profile may receive grants at all.
func EligibleGrantee(p *models.Profile) bool {
	return p != nil && p.Tier == models.TierResearcher
}

// CanViewAnalytics reports whether a profile may read aggregate analytics.
// Exact tier match; ownership of underlying data is irrelevant.
func CanViewAnalytics(p *models.Profile) bool {
	return p != nil && p.Tier == models.TierAnalyst
}
