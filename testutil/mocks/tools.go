// Tool 的测试模拟实现。
//
// 记录每次调用的参数，支持固定输出、自定义函数与错误注入。
package mocks

import (
	"context"
	"maps"
	"sync"
)

// ToolFunc 工具执行函数类型
type ToolFunc func(ctx context.Context, params map[string]any) (string, error)

// ToolCall 记录单次工具调用
type ToolCall struct {
	Params map[string]any
	Output string
	Error  error
}

// Tool 是 types.Tool 的模拟实现
type Tool struct {
	name        string
	description string
	schema      map[string]string

	mu    sync.Mutex
	fn    ToolFunc
	calls []ToolCall
}

// NewTool 创建返回固定输出的工具
func NewTool(name, output string) *Tool {
	return &Tool{
		name:        name,
		description: "Mock tool " + name,
		schema:      map[string]string{"input": "any value"},
		fn: func(context.Context, map[string]any) (string, error) {
			return output, nil
		},
	}
}

// WithFunc 使用自定义执行函数
func (t *Tool) WithFunc(fn ToolFunc) *Tool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fn = fn
	return t
}

// WithError 每次调用返回 err
func (t *Tool) WithError(err error) *Tool {
	return t.WithFunc(func(context.Context, map[string]any) (string, error) {
		return "", err
	})
}

// WithSchema 设置参数说明
func (t *Tool) WithSchema(schema map[string]string) *Tool {
	t.schema = schema
	return t
}

// Name 实现 types.Tool
func (t *Tool) Name() string { return t.name }

// Description 实现 types.Tool
func (t *Tool) Description() string { return t.description }

// ParameterSchema 实现 types.Tool
func (t *Tool) ParameterSchema() map[string]string { return maps.Clone(t.schema) }

// Use 实现 types.Tool
func (t *Tool) Use(ctx context.Context, params map[string]any) (string, error) {
	t.mu.Lock()
	fn := t.fn
	t.mu.Unlock()

	out, err := fn(ctx, params)

	t.mu.Lock()
	t.calls = append(t.calls, ToolCall{Params: maps.Clone(params), Output: out, Error: err})
	t.mu.Unlock()
	return out, err
}

// Calls 调用记录
func (t *Tool) Calls() []ToolCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ToolCall, len(t.calls))
	copy(out, t.calls)
	return out
}
