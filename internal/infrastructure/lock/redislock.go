// Package lock provides a Redis-backed tx.Locker for deployments where the
// close lock must be visible across processes that do not share a database
// session.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"stockledger/internal/core/tx"
	"stockledger/pkg/logger"
)

// DefaultTTL bounds how long a crashed holder can keep a period locked.
const DefaultTTL = 2 * time.Minute

// RedisLocker implements tx.Locker on top of bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker creates a locker namespacing its keys under prefix.
func NewRedisLocker(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		client: redislock.New(rdb),
		prefix: prefix,
		ttl:    ttl,
	}
}

// TryLock obtains the lock without retrying.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), bool, error) {
	fullKey := l.Key(key)
	lk, err := l.client.Obtain(ctx, fullKey, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("obtain lock %s: %w", fullKey, err)
	}

	release := func() {
		// The request context may already be done once the close returns.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Warn(ctx, "release lock failed", "key", fullKey, "error", err)
		}
	}
	return release, true, nil
}

// Key returns the Redis key guarding key.
func (l *RedisLocker) Key(key string) string {
	if l.prefix == "" {
		return key
	}
	return l.prefix + ":" + key
}

var _ tx.Locker = (*RedisLocker)(nil)
