// ScriptedCompleter 的模型后端测试模拟实现。
//
// 按脚本依次返回响应，支持错误注入、阻塞闸门与按 prompt 路由。
package mocks

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted 脚本已用完且未设置兜底响应
var ErrScriptExhausted = errors.New("mock completer: script exhausted")

// Step 脚本中的一步
type Step struct {
	Response string
	Err      error
}

// HandlerFunc 按 prompt 生成响应；返回 handled=false 时继续走脚本
type HandlerFunc func(ctx context.Context, prompt string) (response string, handled bool, err error)

// ScriptedCompleter 是 llm.Completer 的模拟实现
type ScriptedCompleter struct {
	mu sync.Mutex

	script      []Step
	fallback    *Step
	handler     HandlerFunc
	gate        <-chan struct{}
	prompts     []string
	onCall      func(n int)
	callCounter int
}

// NewScriptedCompleter 创建按顺序返回 responses 的模拟后端
func NewScriptedCompleter(responses ...string) *ScriptedCompleter {
	c := &ScriptedCompleter{}
	for _, r := range responses {
		c.script = append(c.script, Step{Response: r})
	}
	return c
}

// Then 追加一步响应
func (c *ScriptedCompleter) Then(response string) *ScriptedCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, Step{Response: response})
	return c
}

// ThenError 追加一步错误
func (c *ScriptedCompleter) ThenError(err error) *ScriptedCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.script = append(c.script, Step{Err: err})
	return c
}

// WithFallback 脚本用完后始终返回该响应
func (c *ScriptedCompleter) WithFallback(response string) *ScriptedCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = &Step{Response: response}
	return c
}

// WithHandler 在脚本之前按 prompt 生成响应
func (c *ScriptedCompleter) WithHandler(h HandlerFunc) *ScriptedCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
	return c
}

// WithGate 每次调用阻塞直到 gate 关闭或 ctx 结束
func (c *ScriptedCompleter) WithGate(gate <-chan struct{}) *ScriptedCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = gate
	return c
}

// OnCall 每次调用开始时回调，n 从 1 开始
func (c *ScriptedCompleter) OnCall(fn func(n int)) *ScriptedCompleter {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCall = fn
	return c
}

// Complete 实现 llm.Completer
func (c *ScriptedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.callCounter++
	n := c.callCounter
	gate, handler, onCall := c.gate, c.handler, c.onCall
	c.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if handler != nil {
		if resp, handled, err := handler(ctx, prompt); handled {
			return resp, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) > 0 {
		step := c.script[0]
		c.script = c.script[1:]
		return step.Response, step.Err
	}
	if c.fallback != nil {
		return c.fallback.Response, c.fallback.Err
	}
	return "", ErrScriptExhausted
}

// Prompts 收到的全部 prompt，按调用顺序
func (c *ScriptedCompleter) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.prompts))
	copy(out, c.prompts)
	return out
}

// Calls 调用次数
func (c *ScriptedCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCounter
}
