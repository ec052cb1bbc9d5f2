package llm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/agentcrew/internal/cache"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newLocalStore(t *testing.T) *cache.Manager {
	t.Helper()
	store, err := cache.NewManager(cache.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCached_HitSkipsBackend(t *testing.T) {
	var calls atomic.Int32
	store := newLocalStore(t)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg, zap.NewNop())

	c := NewCached(countingCompleter(&calls), store, "m", 0, collector, nil)
	ctx := context.Background()

	out, err := c.Complete(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "prompt", out)
	store.Wait()

	out, err = c.Complete(ctx, "prompt")
	require.NoError(t, err)
	assert.Equal(t, "prompt", out)
	assert.Equal(t, int32(1), calls.Load())

	expected := `
# HELP test_cache_hits_total Total number of cache hits
# TYPE test_cache_hits_total counter
test_cache_hits_total{cache_type="completion"} 1
# HELP test_cache_misses_total Total number of cache misses
# TYPE test_cache_misses_total counter
test_cache_misses_total{cache_type="completion"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_cache_hits_total", "test_cache_misses_total"))
}

func TestCached_ErrorsNotCached(t *testing.T) {
	var calls atomic.Int32
	failing := CompleterFunc(func(context.Context, string) (string, error) {
		calls.Add(1)
		return "", errors.New("backend down")
	})
	store := newLocalStore(t)
	c := NewCached(failing, store, "m", 0, nil, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), "prompt")
		require.Error(t, err)
		store.Wait()
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestCached_ClosedStoreFallsThrough(t *testing.T) {
	var calls atomic.Int32
	store, err := cache.NewManager(cache.DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	c := NewCached(countingCompleter(&calls), store, "m", 0, nil, nil)

	out, err := c.Complete(context.Background(), "still works")
	require.NoError(t, err)
	assert.Equal(t, "still works", out)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("model-a", "prompt")
	assert.True(t, strings.HasPrefix(a, "llm:completion:"))
	assert.Equal(t, a, CacheKey("model-a", "prompt"))
	assert.NotEqual(t, a, CacheKey("model-b", "prompt"))
	assert.NotEqual(t, a, CacheKey("model-a", "other"))
	// 分隔符避免拼接歧义
	assert.NotEqual(t, CacheKey("ab", "c"), CacheKey("a", "bc"))
}
