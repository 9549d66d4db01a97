// Package storage abstracts the ciphertext blob store. The vault only ever
// needs whole-object put/get/delete; anything richer (multipart, listing)
// belongs to the backing store's own tooling.
package storage

import "context"

// BlobStore stores ciphertext blobs by key.
type BlobStore interface {
	// Put writes data under key, overwriting any existing object.
	Put(ctx context.Context, key string, data []byte) error
	// Get returns the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object under key. Idempotent: deleting an absent
	// object is not an error.
	Delete(ctx context.Context, key string) error
}
