package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// LongTermMemory 基于向量索引的语义记忆
//
// 只接受字符串值。Search 按语义相似度排序；Get 由进程内的键索引提供。
type LongTermMemory struct {
	index VectorIndex

	mu   sync.RWMutex
	keys map[string]string
}

// NewLongTermMemory 创建长期记忆
func NewLongTermMemory(index VectorIndex) *LongTermMemory {
	return &LongTermMemory{index: index, keys: make(map[string]string)}
}

// Add 写入文本条目
func (m *LongTermMemory) Add(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyRequired
	}
	text, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: long-term memory stores strings, got %T", ErrUnsupportedValue, value)
	}
	if err := m.index.Upsert(ctx, key, text); err != nil {
		return err
	}
	m.mu.Lock()
	m.keys[key] = text
	m.mu.Unlock()
	return nil
}

// AddAll 逐条写入，遇错即止
func (m *LongTermMemory) AddAll(ctx context.Context, values map[string]any) error {
	for k, v := range values {
		if err := m.Add(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Get 读取条目
func (m *LongTermMemory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.keys[key]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// Search 语义检索
func (m *LongTermMemory) Search(ctx context.Context, query string, topK int) ([]any, error) {
	if topK <= 0 {
		return nil, nil
	}
	hits, err := m.index.Query(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Content)
	}
	return out, nil
}

// Clear 清空索引与键索引
func (m *LongTermMemory) Clear(ctx context.Context) error {
	if err := m.index.Reset(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	clear(m.keys)
	m.mu.Unlock()
	return nil
}

// Close 关闭底层索引（如果支持）
func (m *LongTermMemory) Close() error {
	if c, ok := m.index.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
