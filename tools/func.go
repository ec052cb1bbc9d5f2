package tools

import (
	"context"
	"maps"

	"github.com/BaSui01/agentcrew/types"
)

// Func 工具执行函数
type Func func(ctx context.Context, params map[string]any) (string, error)

// FuncTool 以函数实现 types.Tool
type FuncTool struct {
	name        string
	description string
	schema      map[string]string
	fn          Func
}

var _ types.Tool = (*FuncTool)(nil)

// NewFuncTool 创建函数工具
func NewFuncTool(name, description string, schema map[string]string, fn Func) *FuncTool {
	return &FuncTool{
		name:        name,
		description: description,
		schema:      maps.Clone(schema),
		fn:          fn,
	}
}

func (t *FuncTool) Name() string        { return t.name }
func (t *FuncTool) Description() string { return t.description }

func (t *FuncTool) ParameterSchema() map[string]string {
	return maps.Clone(t.schema)
}

func (t *FuncTool) Use(ctx context.Context, params map[string]any) (string, error) {
	return t.fn(ctx, params)
}
