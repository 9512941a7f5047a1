package cache

import (
	"sync"
	"sync/atomic"

	"github.com/erp/reconciler/internal/domain/project"
	"go.uber.org/zap"
)

// ResolverCache holds the most recently built project resolver. An entry is
// only served while its version matches the caller's current resolution
// version, so any rule or allocation write that bumps the version makes the
// cached resolver unreachable even before Invalidate is called.
type ResolverCache struct {
	mu       sync.RWMutex
	resolver *project.Resolver
	logger   *zap.Logger

	hits   int64
	misses int64
}

// ResolverCacheOption is a functional option for configuring the cache
type ResolverCacheOption func(*ResolverCache)

// WithResolverCacheLogger sets the logger for the cache
func WithResolverCacheLogger(logger *zap.Logger) ResolverCacheOption {
	return func(c *ResolverCache) {
		c.logger = logger
	}
}

// NewResolverCache creates an empty resolver cache
func NewResolverCache(opts ...ResolverCacheOption) *ResolverCache {
	c := &ResolverCache{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached resolver if it was built for the given version
func (c *ResolverCache) Get(version int64) (*project.Resolver, bool) {
	c.mu.RLock()
	r := c.resolver
	c.mu.RUnlock()

	if r != nil && r.Version() == version {
		atomic.AddInt64(&c.hits, 1)
		return r, true
	}
	atomic.AddInt64(&c.misses, 1)
	c.logger.Debug("Resolver cache miss", zap.Int64("version", version))
	return nil, false
}

// Put stores a resolver unless a newer one is already cached
func (c *ResolverCache) Put(r *project.Resolver) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolver != nil && c.resolver.Version() > r.Version() {
		return
	}
	c.resolver = r
}

// Invalidate drops the cached resolver
func (c *ResolverCache) Invalidate() {
	c.mu.Lock()
	c.resolver = nil
	c.mu.Unlock()
	c.logger.Debug("Resolver cache invalidated")
}

// CacheStats reports hit and miss counters
type CacheStats struct {
	Hits   int64
	Misses int64
}

// Stats returns cache statistics
func (c *ResolverCache) Stats() CacheStats {
	return CacheStats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}
