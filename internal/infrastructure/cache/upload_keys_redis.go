package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultUploadKeyPrefix = "reconciler:upload-key:"

// RedisUploadKeys is an UploadKeyStore shared by every instance behind the
// same Redis
type RedisUploadKeys struct {
	client redis.Cmdable
	prefix string
}

// NewRedisUploadKeys wraps client. An empty prefix selects the default.
func NewRedisUploadKeys(client redis.Cmdable, prefix string) *RedisUploadKeys {
	if prefix == "" {
		prefix = defaultUploadKeyPrefix
	}
	return &RedisUploadKeys{client: client, prefix: prefix}
}

// Claim spends key with SET NX so only one of several racing requests wins
func (s *RedisUploadKeys) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim upload key: %w", err)
	}
	return ok, nil
}

// Release frees key
func (s *RedisUploadKeys) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release upload key: %w", err)
	}
	return nil
}

var _ UploadKeyStore = (*RedisUploadKeys)(nil)
