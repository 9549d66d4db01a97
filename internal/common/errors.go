// Package common defines shared constants and sentinel errors used across
// GenoVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Principal / authorization errors.
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidToken    = errors.New("invalid token")

	// Grant lifecycle errors.
	ErrIneligibleGrantee = errors.New("ineligible grantee")
	ErrAlreadyGranted    = errors.New("already granted")
	ErrInvalidExpiry     = errors.New("invalid expiry")
	ErrInvalidAccess     = errors.New("invalid access level")
	ErrNoActiveGrant     = errors.New("no active grant")

	// Upload validation errors.
	ErrRateLimited      = errors.New("rate limited")
	ErrUnsupportedType  = errors.New("unsupported media type")
	ErrTooLarge         = errors.New("payload too large")
	ErrMalformedContent = errors.New("malformed content")

	// Retrieval errors.
	ErrIntegrityViolation = errors.New("integrity violation")
	ErrDecryptionFailed   = errors.New("decryption failed")

	// Dependency errors.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDependencyTimeout  = errors.New("dependency timeout")

	// Generic internal flow control.
	ErrInternal = errors.New("internal error")
)
