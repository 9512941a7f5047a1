package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultUploadKeyTTL is how long an accepted Idempotency-Key stays spent
const DefaultUploadKeyTTL = 24 * time.Hour

// UploadKeyStore remembers the Idempotency-Key of every accepted upload so a
// retried request cannot stage the same file twice
type UploadKeyStore interface {
	// Claim spends key for ttl. It returns false when the key is already spent.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees a claimed key, for uploads that failed after claiming it
	Release(ctx context.Context, key string) error
}

// NewUploadKeyStore shares keys through Redis when a client is given and
// keeps them in process otherwise
func NewUploadKeyStore(client *redis.Client) UploadKeyStore {
	if client != nil {
		return NewRedisUploadKeys(client, "")
	}
	return NewInMemoryUploadKeys()
}
