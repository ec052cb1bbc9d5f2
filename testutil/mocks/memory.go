// =============================================================================
// 🧠 Memory - 记忆模拟实现
// =============================================================================
// 用于测试的 types.Memory 模拟，按写入顺序保存条目，支持错误注入
//
// 使用方法:
//
//	mem := mocks.NewMemory().FailAddWithPrefix("human_input_received:", errBoom)
//	agent.WithMemory(mem)
// =============================================================================
package mocks

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// =============================================================================
// 🎯 Memory 结构
// =============================================================================

// Memory 是 types.Memory 的模拟实现
type Memory struct {
	mu sync.RWMutex

	values map[string]any
	order  []string

	// 错误注入
	addPrefix string
	addErr    error
	searchErr error
	clearErr  error

	// 调用记录
	addedKeys   []string
	searchCalls int
}

// NewMemory 创建新的 Memory
func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

// FailAddWithPrefix 键以 prefix 开头的写入返回 err；prefix 为空时全部失败
func (m *Memory) FailAddWithPrefix(prefix string, err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addPrefix = prefix
	m.addErr = err
	return m
}

// WithSearchError 设置 Search 错误
func (m *Memory) WithSearchError(err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
	return m
}

// WithClearError 设置 Clear 错误
func (m *Memory) WithClearError(err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearErr = err
	return m
}

// =============================================================================
// 🔧 types.Memory 实现
// =============================================================================

// Add 写入条目
func (m *Memory) Add(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addedKeys = append(m.addedKeys, key)
	if m.addErr != nil && strings.HasPrefix(key, m.addPrefix) {
		return m.addErr
	}
	if _, ok := m.values[key]; ok {
		m.order = slices.DeleteFunc(m.order, func(k string) bool { return k == key })
	}
	m.values[key] = value
	m.order = append(m.order, key)
	return nil
}

// AddAll 逐条写入
func (m *Memory) AddAll(ctx context.Context, values map[string]any) error {
	for k, v := range values {
		if err := m.Add(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Get 读取条目
func (m *Memory) Get(_ context.Context, key string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Search 子串匹配，最近写入优先
func (m *Memory) Search(_ context.Context, query string, topK int) ([]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	q := strings.ToLower(query)
	var out []any
	for i := len(m.order) - 1; i >= 0 && len(out) < topK; i-- {
		k := m.order[i]
		v := m.values[k]
		if strings.Contains(strings.ToLower(k), q) || strings.Contains(strings.ToLower(fmt.Sprint(v)), q) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Clear 清空
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clearErr != nil {
		return m.clearErr
	}
	clear(m.values)
	m.order = nil
	return nil
}

// =============================================================================
// 📊 调用记录
// =============================================================================

// Keys 当前保存的键，按写入顺序
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// AddedKeys 所有 Add 调用的键（含失败的）
func (m *Memory) AddedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.addedKeys)
}

// SearchCalls Search 调用次数
func (m *Memory) SearchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searchCalls
}
