package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{
		Addr:       mr.Addr(),
		DefaultTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func setupLocalOnly(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestNewManager(t *testing.T) {
	_, manager := setupTestRedis(t)

	assert.NotNil(t, manager.local)
	assert.NotNil(t, manager.redis)
	assert.True(t, manager.GetStats().Redis)
}

func TestNewManager_RedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewManager(Config{Addr: addr}, zap.NewNop())
	assert.Error(t, err)
}

func TestManager_LocalOnly_SetAndGet(t *testing.T) {
	manager := setupLocalOnly(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", []byte("v"), 0))
	manager.Wait()

	val, err := manager.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(val))
	assert.False(t, manager.GetStats().Redis)
	assert.NoError(t, manager.Ping(ctx))
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "test-key", []byte("test-value"), time.Minute))

	stored, err := mr.Get("test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", stored)

	value, err := manager.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", string(value))
}

func TestManager_GetBackfillsFromRedis(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	// 只存在于 L2 的键
	require.NoError(t, mr.Set("remote", "from-redis"))

	value, err := manager.Get(ctx, "remote")
	require.NoError(t, err)
	assert.Equal(t, "from-redis", string(value))

	manager.Wait()
	mr.Del("remote")

	value, err = manager.Get(ctx, "remote")
	require.NoError(t, err)
	assert.Equal(t, "from-redis", string(value))
}

func TestManager_GetNonExistent(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "non-existent")
	assert.True(t, IsCacheMiss(err))
	assert.Nil(t, value)
	assert.Equal(t, uint64(1), manager.GetStats().Misses)
}

func TestManager_Delete(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "gone", []byte("x"), 0))
	manager.Wait()
	require.NoError(t, manager.Delete(ctx, "gone"))

	assert.False(t, mr.Exists("gone"))
	_, err := manager.Get(ctx, "gone")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, manager.Delete(ctx))
}

func TestManager_TTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl-key", []byte("v"), 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("ttl-key"))

	require.NoError(t, manager.Set(ctx, "default-ttl", []byte("v"), 0))
	assert.Equal(t, time.Minute, mr.TTL("default-ttl"))
}

func TestManager_HealthCheck(t *testing.T) {
	_, manager := setupTestRedis(t)
	assert.NoError(t, manager.Ping(context.Background()))
}

func TestManager_HealthCheckFailed(t *testing.T) {
	mr, manager := setupTestRedis(t)
	mr.Close()

	assert.Error(t, manager.Ping(context.Background()))
}

func TestManager_Closed(t *testing.T) {
	manager := setupLocalOnly(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	ctx := context.Background()
	_, err := manager.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "k", nil, 0), ErrClosed)
	assert.ErrorIs(t, manager.Delete(ctx, "k"), ErrClosed)
	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
}

func TestStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.Equal(t, 0.75, Stats{Hits: 3, Misses: 1}.HitRate())
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := string(rune('a' + id))
			assert.NoError(t, manager.Set(ctx, key, []byte(key), 0))
			val, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, key, string(val))
		}(i)
	}
	wg.Wait()
}
