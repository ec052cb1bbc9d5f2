package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/BaSui01/agentcrew/internal/cache"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"go.uber.org/zap"
)

const completionCacheType = "completion"

// Cached 相同 model + prompt 的补全结果缓存
//
// 缓存读写失败只记录日志，不影响调用结果；错误响应不缓存。
type Cached struct {
	next      Completer
	store     *cache.Manager
	model     string
	ttl       time.Duration
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewCached 创建缓存包装
func NewCached(next Completer, store *cache.Manager, model string, ttl time.Duration, collector *metrics.Collector, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		next:      next,
		store:     store,
		model:     model,
		ttl:       ttl,
		collector: collector,
		logger:    logger.With(zap.String("component", "llm_cache")),
	}
}

// Complete 实现 Completer
func (c *Cached) Complete(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(c.model, prompt)

	val, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		c.collector.RecordCacheHit(completionCacheType)
		return string(val), nil
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn("completion cache read failed", zap.Error(err))
	}
	c.collector.RecordCacheMiss(completionCacheType)

	out, err := c.next.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := c.store.Set(ctx, key, []byte(out), c.ttl); err != nil {
		c.logger.Warn("completion cache write failed", zap.Error(err))
	}
	return out, nil
}

// CacheKey 缓存键：SHA-256(model + "\x00" + prompt)
func CacheKey(model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return "llm:completion:" + hex.EncodeToString(h.Sum(nil))
}
