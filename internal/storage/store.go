// Package storage provides flat keyed document stores. Each moderation
// concern (captcha records, cooldown entries, warnings) gets its own store
// so one concern's key space can never collide with another's.
package storage

import "context"

// Store is a keyed document store. Values are serialized as JSON documents;
// Get reports whether the key existed so callers can distinguish absence
// from a zero value.
type Store interface {
	// Get unmarshals the document stored under key into dest.
	// Returns false with a nil error when the key does not exist.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key, overwriting any existing document.
	Set(ctx context.Context, key string, value any) error

	// Delete removes the document under key. Deleting a missing key is not
	// an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys currently present in the store.
	Keys(ctx context.Context) ([]string, error)
}
