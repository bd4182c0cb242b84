package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quickchess/server/internal/domain"
)

const keyPrefix = "session:"

// RedisCache implements SessionCache on a shared Redis instance, making the
// cache visible to every coordinator process in a scaled deployment.
type RedisCache struct {
	client       *redis.Client
	completedTTL time.Duration
}

// NewRedis creates a Redis-backed session cache. completedTTL bounds how
// long completed sessions stay readable from the fast tier.
func NewRedis(client *redis.Client, completedTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, completedTTL: completedTTL}
}

// Get returns the cached session, or (nil, nil) when the key is absent or
// already evicted.
func (c *RedisCache) Get(ctx context.Context, sessionID string) (*domain.GameSession, error) {
	data, err := c.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get %s: %w", sessionID, err)
	}

	var session domain.GameSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode cached session %s: %w", sessionID, err)
	}
	return &session, nil
}

// Set stores the session as JSON. Completed sessions get the eviction TTL.
func (c *RedisCache) Set(ctx context.Context, sessionID string, session *domain.GameSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sessionID, err)
	}

	var ttl time.Duration
	if session.Lifecycle == domain.LifecycleCompleted {
		ttl = c.completedTTL
	}

	if err := c.client.Set(ctx, keyPrefix+sessionID, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the cached session.
func (c *RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", sessionID, err)
	}
	return nil
}
