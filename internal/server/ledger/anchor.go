// Package ledger anchors ciphertext digests in an external append-only topic
// (a consensus-network topic service), so file integrity can be checked
// against a source the application cannot retroactively alter.
//
// The ledger is best-effort by contract: when it is unreachable, uploads
// proceed with a locally generated placeholder reference, and downstream
// integrity checks treat such references as unverifiable.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// PlaceholderPrefix marks references generated locally while the ledger was
// unreachable. They prove nothing.
const PlaceholderPrefix = "local:"

// Anchor submits payloads to and fetches payloads from the tamper-evidence
// ledger.
type Anchor interface {
	// Submit appends payload to the topic and returns an opaque reference
	// that can later retrieve it.
	Submit(ctx context.Context, payload string) (string, error)
	// Fetch returns the payload previously submitted under ref.
	Fetch(ctx context.Context, ref string) (string, error)
}

// Disabled is the Anchor used when no ledger endpoint is configured. Every
// submission yields a placeholder reference, so integrity checks degrade to
// unverifiable instead of failing.
type Disabled struct{}

func (Disabled) Submit(ctx context.Context, payload string) (string, error) {
	return PlaceholderRef(), nil
}

func (Disabled) Fetch(ctx context.Context, ref string) (string, error) {
	return "", errors.New("ledger disabled")
}

// PlaceholderRef generates a reference for an upload whose digest could not
// be anchored.
func PlaceholderRef() string {
	return PlaceholderPrefix + uuid.NewString()
}

// IsPlaceholder reports whether ref was generated locally rather than by the
// ledger.
func IsPlaceholder(ref string) bool {
	return ref == "" || strings.HasPrefix(ref, PlaceholderPrefix)
}
