package lock

import (
	"testing"
	"time"

	"github.com/erp/reconciler/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Create(t *testing.T) {
	recon := config.ReconciliationConfig{PassLockTTL: time.Minute, PassLockWait: time.Second}

	t.Run("redis disabled", func(t *testing.T) {
		locker, client, err := NewFactory(config.RedisConfig{}, recon).Create()
		require.NoError(t, err)
		assert.Nil(t, client)
		assert.IsType(t, &MutexPassLocker{}, locker)
	})

	unreachable := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	t.Run("falls back when redis is unreachable", func(t *testing.T) {
		locker, client, err := NewFactory(unreachable, recon).Create()
		require.NoError(t, err)
		assert.Nil(t, client)
		assert.IsType(t, &MutexPassLocker{}, locker)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		_, _, err := NewFactory(unreachable, recon, WithInMemoryFallback(false)).Create()
		assert.Error(t, err)
	})
}
