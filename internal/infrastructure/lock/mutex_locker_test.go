package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutexPassLocker_Exclusive(t *testing.T) {
	l := NewMutexPassLocker(time.Second)
	ctx := context.Background()

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, LedgerPass)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestMutexPassLocker_TimesOut(t *testing.T) {
	l := NewMutexPassLocker(20 * time.Millisecond)
	release, err := l.Acquire(context.Background(), LedgerPass)
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), LedgerPass)
	assert.ErrorIs(t, err, shared.ErrPassInProgress)
}

func TestMutexPassLocker_NamesAreIndependent(t *testing.T) {
	l := NewMutexPassLocker(20 * time.Millisecond)
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	other, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	other()
}

func TestMutexPassLocker_ReleaseIsIdempotent(t *testing.T) {
	l := NewMutexPassLocker(20 * time.Millisecond)
	release, err := l.Acquire(context.Background(), LedgerPass)
	require.NoError(t, err)
	release()
	release()

	again, err := l.Acquire(context.Background(), LedgerPass)
	require.NoError(t, err)
	again()
}

func TestMutexPassLocker_ContextCancelled(t *testing.T) {
	l := NewMutexPassLocker(time.Second)
	release, err := l.Acquire(context.Background(), LedgerPass)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, LedgerPass)
	assert.ErrorIs(t, err, context.Canceled)
}
