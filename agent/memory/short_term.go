package memory

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultShortTermCapacity 短期记忆默认容量
const DefaultShortTermCapacity = 100

// ShortTermMemory 基于 LRU 的有界短期记忆
//
// 超出容量时淘汰最久未使用的条目。Search 按最近使用优先返回，且不改变使用顺序。
type ShortTermMemory struct {
	cache *lru.Cache[string, any]
}

// NewShortTermMemory 创建短期记忆，capacity <= 0 时使用默认容量
func NewShortTermMemory(capacity int) *ShortTermMemory {
	if capacity <= 0 {
		capacity = DefaultShortTermCapacity
	}
	// capacity > 0 时 lru.New 不会返回错误
	cache, _ := lru.New[string, any](capacity)
	return &ShortTermMemory{cache: cache}
}

// Add 写入条目
func (m *ShortTermMemory) Add(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrKeyRequired
	}
	m.cache.Add(key, value)
	return nil
}

// AddAll 批量写入
func (m *ShortTermMemory) AddAll(ctx context.Context, values map[string]any) error {
	for k, v := range values {
		if err := m.Add(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Get 读取条目并刷新其使用顺序
func (m *ShortTermMemory) Get(ctx context.Context, key string) (any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := m.cache.Get(key)
	return v, ok, nil
}

// Search 子串匹配，最近使用优先
func (m *ShortTermMemory) Search(ctx context.Context, query string, topK int) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	keys := m.cache.Keys() // 最旧 -> 最新
	out := make([]any, 0, min(topK, len(keys)))
	for i := len(keys) - 1; i >= 0 && len(out) < topK; i-- {
		v, ok := m.cache.Peek(keys[i])
		if !ok {
			continue
		}
		if matches(query, keys[i], v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Clear 清空
func (m *ShortTermMemory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.cache.Purge()
	return nil
}

// Len 当前条目数
func (m *ShortTermMemory) Len() int {
	return m.cache.Len()
}
