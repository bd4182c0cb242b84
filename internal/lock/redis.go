package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "session_lock:"

// releaseScript deletes the lock key only when it still holds our token, so
// a lock that expired and was re-acquired by another process is never
// released by the original holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker on a shared Redis instance, making the
// per-session lock visible to every coordinator process that can serve the
// session.
type RedisLocker struct {
	client     *redis.Client
	timeout    time.Duration
	holdTTL    time.Duration
	retryEvery time.Duration
}

// NewRedisLocker creates a Redis-backed per-session locker. timeout bounds
// how long Acquire waits; holdTTL bounds how long a crashed holder can keep
// a session locked.
func NewRedisLocker(client *redis.Client, timeout, holdTTL time.Duration) *RedisLocker {
	return &RedisLocker{
		client:     client,
		timeout:    timeout,
		holdTTL:    holdTTL,
		retryEvery: 20 * time.Millisecond,
	}
}

// Acquire takes the distributed lock for a session ID via SET NX with an
// ownership token.
func (l *RedisLocker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	key := lockKeyPrefix + sessionID
	token := uuid.New().String()
	deadline := time.Now().Add(l.timeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.holdTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire session lock %s: %w", sessionID, err)
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
					// Lock will expire via holdTTL.
					return
				}
			}
			return release, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: lock wait exceeded %s for session %s", ErrSessionBusy, l.timeout, sessionID)
		}

		select {
		case <-time.After(l.retryEvery):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
