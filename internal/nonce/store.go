// Package nonce provides a one-time marker store. It backs two
// guarantees the token layer cannot give on its own: confirmation links
// are consumed exactly once, and logged-out access tokens can be
// denied before their natural expiry.
//
// For single-node deployments the in-memory store is used; distributed
// deployments use the Redis store.
package nonce

import (
	"context"
	"time"
)

// Store records keys that may be used at most once.
type Store interface {
	// Consume marks key as used for the duration of ttl. Returns true
	// if this call was the first use, false if the key was already
	// consumed. The check and the mark are atomic.
	Consume(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Exists reports whether key is currently marked.
	Exists(ctx context.Context, key string) (bool, error)

	// Release removes the mark on key so it can be consumed again.
	// Used to roll back a Consume whose follow-up work failed.
	Release(ctx context.Context, key string) error

	// Close releases store resources.
	Close() error
}

// Key namespaces. Markers from different concerns share one store.
const (
	// confirmationPrefix namespaces one-time confirmation token markers.
	confirmationPrefix = "nonce:confirm:"

	// revokedPrefix namespaces the access-token deny-list.
	revokedPrefix = "nonce:revoked:"
)

// ConfirmationKey returns the marker key for a confirmation token digest.
func ConfirmationKey(digest string) string {
	return confirmationPrefix + digest
}

// RevokedTokenKey returns the deny-list key for a token ID.
func RevokedTokenKey(jti string) string {
	return revokedPrefix + jti
}
