package port

import (
	"context"
	"time"
)

// Cache is a key/value store with per-entry expiry. A zero ttl stores the value
// without expiry. Get and Take return repository.ErrNotFound for absent or expired keys.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Take returns the value and removes the key in one step. Of several
	// concurrent callers at most one observes the value.
	Take(ctx context.Context, key string) (string, error)
}
