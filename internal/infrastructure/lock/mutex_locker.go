package lock

import (
	"context"
	"sync"
	"time"

	"github.com/erp/reconciler/internal/domain/shared"
)

// MutexPassLocker is an in-process PassLocker. It only serializes passes of
// a single process and is used when Redis is not configured.
type MutexPassLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewMutexPassLocker creates an in-process locker
func NewMutexPassLocker(wait time.Duration) *MutexPassLocker {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &MutexPassLocker{
		slots: make(map[string]chan struct{}),
		wait:  wait,
	}
}

func (l *MutexPassLocker) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[name]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[name] = s
	}
	return s
}

// Acquire takes the named lock
func (l *MutexPassLocker) Acquire(ctx context.Context, name string) (func(), error) {
	s := l.slot(name)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s <- struct{}{}:
	case <-timer.C:
		return nil, shared.ErrPassInProgress
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-s })
	}, nil
}

var _ PassLocker = (*MutexPassLocker)(nil)
