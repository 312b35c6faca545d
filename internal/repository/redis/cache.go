package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/wizlearn/account-service/internal/core/port"
	"github.com/wizlearn/account-service/internal/repository"
)

const defaultCachePrefix = "wiz"

// CacheRepository implements port.Cache on plain Redis strings.
type CacheRepository struct {
	client red.UniversalClient
	prefix string
}

// NewCacheRepository constructs a cache namespaced under keyPrefix.
func NewCacheRepository(client red.UniversalClient, keyPrefix string) *CacheRepository {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &CacheRepository{client: client, prefix: prefix}
}

// Get returns the stored value or repository.ErrNotFound once the key is absent or expired.
func (r *CacheRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set overwrites the key. A zero ttl stores the value without expiry.
func (r *CacheRepository) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("redis set: negative ttl %s", ttl)
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes the keys. Absent keys are ignored.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		prefixed = append(prefixed, r.key(key))
	}

	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Take reads and removes the key with GETDEL.
func (r *CacheRepository) Take(ctx context.Context, key string) (string, error) {
	value, err := r.client.GetDel(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis getdel: %w", err)
	}
	return value, nil
}

func (r *CacheRepository) key(key string) string {
	return r.prefix + ":" + key
}

var _ port.Cache = (*CacheRepository)(nil)
