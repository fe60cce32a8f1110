package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streetfix/resolve-service/internal/domain"
)

const (
	// UserKeyPrefix is the Redis key prefix for cached accounts.
	UserKeyPrefix = "user:"
	// DefaultUserTTL bounds how stale a cached account may get.
	DefaultUserTTL = 5 * time.Minute
)

// UserCache holds recently read accounts. Every service that writes a user invalidates
// its entry.
type UserCache interface {
	Get(ctx context.Context, id string) (*domain.User, bool, error)
	Set(ctx context.Context, user *domain.User) error
	Invalidate(ctx context.Context, ids ...string) error
}

// RedisUserCache stores accounts as JSON with a fixed TTL.
type RedisUserCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisUserCache creates a cache. A zero ttl selects DefaultUserTTL.
func NewRedisUserCache(client *redis.Client, ttl time.Duration) *RedisUserCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &RedisUserCache{client: client, prefix: UserKeyPrefix, ttl: ttl}
}

// Get returns the cached account, or false on a miss.
func (c *RedisUserCache) Get(ctx context.Context, id string) (*domain.User, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached user: %w", err)
	}

	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		// a corrupt entry is a miss; drop it so the next read repopulates
		_ = c.client.Del(ctx, c.key(id)).Err()
		return nil, false, nil
	}
	return &user, true, nil
}

// Set caches user without its password hash.
func (c *RedisUserCache) Set(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return errors.New("user id cannot be empty")
	}
	copied := *user
	copied.PasswordHash = ""

	data, err := json.Marshal(copied)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	if err := c.client.Set(ctx, c.key(user.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache user: %w", err)
	}
	return nil
}

// Invalidate removes the given accounts.
func (c *RedisUserCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate users: %w", err)
	}
	return nil
}

func (c *RedisUserCache) key(id string) string {
	return c.prefix + id
}
