package ports

import (
	"context"
	"time"
)

// Store is a keyed store with per-key expiry.
// Get returns core.ErrNotFound for missing or expired keys.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// CompareAndDelete removes key only if it currently holds expected.
	// It reports whether the key was removed.
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}
