package lock

import (
	"github.com/erp/reconciler/internal/infrastructure/cache"
	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory creates a PassLocker based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	reconConfig           config.ReconciliationConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-process locker
// when Redis is enabled but unreachable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(redisCfg config.RedisConfig, reconCfg config.ReconciliationConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		reconConfig:           reconCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns a Redis locker when Redis is enabled and reachable, the
// in-process locker otherwise. The returned client is nil unless Redis is in
// use; the caller owns it.
func (f *Factory) Create() (PassLocker, *redis.Client, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-process pass lock")
		return NewMutexPassLocker(f.reconConfig.PassLockWait), nil, nil
	}

	client, err := cache.NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis pass lock", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisPassLocker(client, f.reconConfig.PassLockTTL, f.reconConfig.PassLockWait, f.logger), client, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, err
	}

	f.logger.Warn("Redis unavailable, falling back to in-process pass lock. "+
		"Passes are not serialized across instances.",
		zap.Error(err),
	)
	return NewMutexPassLocker(f.reconConfig.PassLockWait), nil, nil
}
