package cache

import (
	"context"
	"sync"
	"time"
)

const uploadKeySweepInterval = 5 * time.Minute

// InMemoryUploadKeys is an UploadKeyStore for single-instance deployments
// and tests
type InMemoryUploadKeys struct {
	mu        sync.Mutex
	expiresAt map[string]time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryUploadKeys starts the store and its expiry sweep; Close stops it
func NewInMemoryUploadKeys() *InMemoryUploadKeys {
	s := &InMemoryUploadKeys{
		expiresAt: make(map[string]time.Time),
		stop:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Claim spends key unless it is spent and not yet expired
func (s *InMemoryUploadKeys) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if exp, ok := s.expiresAt[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.expiresAt[key] = now.Add(ttl)
	return true, nil
}

// Release frees key
func (s *InMemoryUploadKeys) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expiresAt, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of keys held, expired ones included until swept
func (s *InMemoryUploadKeys) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiresAt)
}

// Close stops the sweep. Safe to call more than once.
func (s *InMemoryUploadKeys) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryUploadKeys) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(uploadKeySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(time.Now())
		}
	}
}

func (s *InMemoryUploadKeys) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, exp := range s.expiresAt {
		if !now.Before(exp) {
			delete(s.expiresAt, key)
		}
	}
}

var _ UploadKeyStore = (*InMemoryUploadKeys)(nil)
