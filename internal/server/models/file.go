package models

import "time"

// FileRecord describes metadata for an encrypted file. The ciphertext itself
// lives in object storage under StorageKey; only the digest and the ledger
// reference can change after creation, everything else is immutable until the
// owner deletes the record.
//
// Key and IV are persisted alongside the metadata row. Anyone with read access
// to this table effectively holds decryption capability; envelope encryption
// under a per-owner master key would be the hardened alternative.
type FileRecord struct {
	// ID is the opaque file identity (UUID).
	ID string
	// OwnerID is the profile that uploaded the file.
	OwnerID string
	// Filename is the display name supplied at upload.
	Filename string
	// MediaType is the declared content type, validated against the allow-list.
	MediaType string
	// SizeBytes is the plaintext size at upload time.
	SizeBytes int64

	// StorageKey locates the ciphertext blob in object storage.
	StorageKey string
	// Key is the per-file AES-256 key.
	Key []byte
	// IV is the CBC initialization vector.
	IV []byte
	// Digest is the hex SHA-256 of the ciphertext.
	Digest string

	// LedgerRef anchors the digest in the external tamper-evidence ledger.
	// References with the "local:" prefix are placeholders generated when the
	// ledger was unreachable; integrity checks against them are unverifiable.
	LedgerRef string

	CreatedAt time.Time
}

// Sanitized returns a copy with key material stripped, safe to hand to callers.
func (f FileRecord) Sanitized() FileRecord {
	f.Key = nil
	f.IV = nil
	return f
}
