package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryUploadKeys_Claim(t *testing.T) {
	store := NewInMemoryUploadKeys()
	defer store.Close()
	ctx := context.Background()

	ok, err := store.Claim(ctx, "PO:key-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Claim(ctx, "PO:key-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "a spent key is refused")

	ok, err = store.Claim(ctx, "ACCEPTANCE:key-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestInMemoryUploadKeys_Expiry(t *testing.T) {
	store := NewInMemoryUploadKeys()
	defer store.Close()
	ctx := context.Background()

	ok, _ := store.Claim(ctx, "short", 10*time.Millisecond)
	require.True(t, ok)
	_, _ = store.Claim(ctx, "long", time.Hour)

	time.Sleep(20 * time.Millisecond)

	ok, err := store.Claim(ctx, "short", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "an expired key can be spent again")

	_, _ = store.Claim(ctx, "stale", time.Millisecond)
	store.sweep(time.Now().Add(time.Second))
	assert.Equal(t, 2, store.Len())
}

func TestInMemoryUploadKeys_Release(t *testing.T) {
	store := NewInMemoryUploadKeys()
	defer store.Close()
	ctx := context.Background()

	_, _ = store.Claim(ctx, "key", time.Hour)
	require.NoError(t, store.Release(ctx, "key"))

	ok, err := store.Claim(ctx, "key", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInMemoryUploadKeys_ConcurrentClaims(t *testing.T) {
	store := NewInMemoryUploadKeys()
	defer store.Close()
	ctx := context.Background()

	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := store.Claim(ctx, "same", time.Hour); err == nil && ok {
				won.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), won.Load())
}

func TestInMemoryUploadKeys_CloseTwice(t *testing.T) {
	store := NewInMemoryUploadKeys()
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestNewUploadKeyStore_WithoutRedis(t *testing.T) {
	store := NewUploadKeyStore(nil)
	_, ok := store.(*InMemoryUploadKeys)
	assert.True(t, ok)
	_ = store.(*InMemoryUploadKeys).Close()
}
