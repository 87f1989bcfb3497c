package cache

import (
	"context"
	"time"
)

// Store is a byte oriented key/value store with per-entry expiry.
type Store interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes key with a fresh ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Replace overwrites an existing key and keeps its remaining ttl.
	// It reports false when the key does not exist.
	Replace(ctx context.Context, key string, value []byte) (bool, error)

	Delete(ctx context.Context, key string) error
}
