package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/erp/reconciler/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	keyPrefix      = "reconciler:pass:"
	retryBackoff   = 250 * time.Millisecond
	releaseTimeout = 5 * time.Second
)

// RedisPassLocker is a PassLocker shared by every process using the same
// Redis database. The lock expires after its TTL so a crashed holder cannot
// block passes forever.
type RedisPassLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisPassLocker creates a Redis-backed locker
func NewRedisPassLocker(client redislock.RedisClient, ttl, wait time.Duration, logger *zap.Logger) *RedisPassLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if wait <= 0 {
		wait = DefaultWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPassLocker{
		client: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

// Acquire takes the named lock, retrying until the wait elapses
func (l *RedisPassLocker) Acquire(ctx context.Context, name string) (func(), error) {
	key := keyPrefix + name

	obtainCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lk, err := l.client.Obtain(obtainCtx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryBackoff),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
			return nil, shared.ErrPassInProgress
		}
		return nil, fmt.Errorf("failed to obtain pass lock %s: %w", name, err)
	}

	l.logger.Debug("Pass lock obtained", zap.String("lock", key), zap.Duration("ttl", l.ttl))
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := lk.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("Failed to release pass lock", zap.String("lock", key), zap.Error(err))
		}
	}, nil
}

var _ PassLocker = (*RedisPassLocker)(nil)
