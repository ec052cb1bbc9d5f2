package tools

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentcrew/types"
)

// EchoToolName echo 工具名称
const EchoToolName = "echo"

// EchoTool 原样返回 input 参数
type EchoTool struct{}

var _ types.Tool = EchoTool{}

// NewEchoTool 创建 echo 工具
func NewEchoTool() EchoTool { return EchoTool{} }

func (EchoTool) Name() string { return EchoToolName }

func (EchoTool) Description() string {
	return "Echoes back the input string. Useful for testing and repeating information."
}

func (EchoTool) ParameterSchema() map[string]string {
	return map[string]string{"input": "The string to echo back."}
}

func (EchoTool) Use(_ context.Context, params map[string]any) (string, error) {
	v, ok := params["input"]
	if !ok || v == nil {
		return "", fmt.Errorf("%w: missing 'input' parameter", ErrInvalidParameters)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}
