package llm

import (
	"context"
	"strings"
)

// Completer 模型后端契约：给定 prompt 返回模型的原始文本响应
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc 函数适配器
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete 实现 Completer
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// EchoCompleter 离线后端，回显 prompt 中的任务描述行
//
// 适用于本地演示与冒烟测试，不访问任何外部服务。
type EchoCompleter struct{}

// Complete 实现 Completer
func (EchoCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if desc, ok := strings.CutPrefix(line, DescriptionLinePrefix); ok {
			return "Echo: " + strings.TrimSpace(desc), nil
		}
	}
	return "Echo: " + strings.TrimSpace(prompt), nil
}

// DescriptionLinePrefix prompt 中任务描述行的前缀
const DescriptionLinePrefix = "Description:"
