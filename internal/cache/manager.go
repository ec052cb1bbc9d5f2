// Package cache provides internal cache management.
// This package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// =============================================================================
// 💾 缓存管理器
// =============================================================================

// Manager 两级缓存管理器
//
// L1 为进程内 ristretto 缓存；配置了 Addr 时启用 Redis 作为 L2。
// Get 先查 L1，L2 命中时回填 L1；Set 与 Delete 同时作用于两级。
type Manager struct {
	local  *ristretto.Cache[string, []byte]
	redis  *redis.Client
	config Config
	logger *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64

	mu     sync.RWMutex
	closed bool
	stopCh chan struct{}
}

// Config 缓存配置
type Config struct {
	// 本地缓存最大容量（字节）
	LocalMaxCost int64 `yaml:"local_max_cost" json:"local_max_cost"`

	// L2 回填到 L1 的过期时间
	LocalTTL time.Duration `yaml:"local_ttl" json:"local_ttl"`

	// Redis 地址，为空时只使用本地缓存
	Addr string `yaml:"addr" json:"addr"`

	// 密码
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 默认过期时间
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// 最大重试次数
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 连接池大小
	PoolSize int `yaml:"pool_size" json:"pool_size"`

	// 健康检查间隔
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		LocalMaxCost:        64 << 20,
		LocalTTL:            time.Minute,
		DefaultTTL:          10 * time.Minute,
		MaxRetries:          3,
		PoolSize:            10,
		HealthCheckInterval: 30 * time.Second,
	}
}

// NewManager 创建缓存管理器
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if config.LocalMaxCost <= 0 {
		config.LocalMaxCost = defaults.LocalMaxCost
	}
	if config.LocalTTL <= 0 {
		config.LocalTTL = defaults.LocalTTL
	}
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = defaults.DefaultTTL
	}

	local, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: config.LocalMaxCost / 100 * 10,
		MaxCost:     config.LocalMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}

	m := &Manager{
		local:  local,
		config: config,
		logger: logger.With(zap.String("component", "cache")),
		stopCh: make(chan struct{}),
	}

	if config.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:       config.Addr,
			Password:   config.Password,
			DB:         config.DB,
			MaxRetries: config.MaxRetries,
			PoolSize:   config.PoolSize,
		})

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			local.Close()
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		m.redis = client

		// 启动健康检查
		if config.HealthCheckInterval > 0 {
			go m.healthCheckLoop()
		}
	}

	m.logger.Info("cache manager initialized",
		zap.Int64("local_max_cost", config.LocalMaxCost),
		zap.Bool("redis", m.redis != nil),
	)

	return m, nil
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Get 获取缓存值，未命中返回 ErrCacheMiss
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	if val, ok := m.local.Get(key); ok {
		m.hits.Add(1)
		return val, nil
	}

	if m.redis == nil {
		m.misses.Add(1)
		return nil, ErrCacheMiss
	}

	val, err := m.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		m.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if err != nil {
		m.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	m.hits.Add(1)
	m.local.SetWithTTL(key, val, int64(len(val)), m.config.LocalTTL)
	return val, nil
}

// Set 设置缓存值，ttl 为 0 时使用默认过期时间
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	m.local.SetWithTTL(key, value, int64(len(value)), ttl)

	if m.redis == nil {
		return nil
	}
	if err := m.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete 删除缓存值
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	if len(keys) == 0 {
		return nil
	}

	for _, key := range keys {
		m.local.Del(key)
	}

	if m.redis == nil {
		return nil
	}
	if err := m.redis.Del(ctx, keys...).Err(); err != nil {
		m.logger.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Wait 等待本地缓存的异步写入生效
func (m *Manager) Wait() {
	m.local.Wait()
}

// Ping 检查 Redis 连接，未启用 Redis 时总是成功
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	if m.redis == nil {
		return nil
	}
	return m.redis.Ping(ctx).Err()
}

// Close 关闭缓存管理器
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.stopCh)
	m.logger.Info("closing cache manager")

	m.local.Close()
	if m.redis != nil {
		return m.redis.Close()
	}
	return nil
}

// =============================================================================
// 🏥 健康检查
// =============================================================================

// healthCheckLoop 健康检查循环
func (m *Manager) healthCheckLoop() {
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := m.Ping(ctx); err != nil {
			m.logger.Error("cache health check failed", zap.Error(err))
		} else {
			m.logger.Debug("cache health check passed")
		}
		cancel()
	}
}

// =============================================================================
// 📊 统计信息
// =============================================================================

// Stats 缓存统计信息
type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Redis  bool   `json:"redis"`
}

// HitRate 命中率
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// GetStats 获取缓存统计信息
func (m *Manager) GetStats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Redis:  m.redis != nil,
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

var (
	// ErrCacheMiss 缓存未命中错误
	ErrCacheMiss = errors.New("cache miss")

	// ErrClosed 缓存管理器已关闭
	ErrClosed = errors.New("cache manager is closed")
)

// IsCacheMiss 判断是否为缓存未命中错误
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
