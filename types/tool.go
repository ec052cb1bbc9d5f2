package types

import "context"

// Tool 是 Agent 在推理过程中可调用的能力
//
// Use 返回的 error 不会终止推理循环，会作为描述性文本写回对话历史。
type Tool interface {
	Name() string
	Description() string
	// ParameterSchema 参数名 -> 参数说明
	ParameterSchema() map[string]string
	Use(ctx context.Context, params map[string]any) (string, error)
}

// ToolCall 模型响应中解析出的工具调用
type ToolCall struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"tool_parameters"`
}
