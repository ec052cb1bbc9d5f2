package crews

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试用 Agent
// =============================================================================

func newReasoningAgent(t *testing.T, name string, backend llm.Completer) *agent.ReasoningAgent {
	t.Helper()
	a, err := agent.NewReasoningAgent(agent.ReasoningConfig{
		Name: name,
		Role: "a " + name + " agent",
	}, backend, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// funcAgent 以函数实现 PerformTask，并像真实 Agent 一样让任务进入终态
type funcAgent struct {
	name     string
	fn       func(ctx context.Context, task *agent.Task, ec *agent.ExecutionContext) (string, error)
	closeErr error
	closed   atomic.Int32

	mu    sync.Mutex
	tasks []*agent.Task
}

func newFuncAgent(name string, fn func(ctx context.Context, task *agent.Task, ec *agent.ExecutionContext) (string, error)) *funcAgent {
	return &funcAgent{name: name, fn: fn}
}

func (f *funcAgent) Name() string         { return f.name }
func (f *funcAgent) Role() string         { return "a " + f.name + " agent" }
func (f *funcAgent) Tools() []types.Tool  { return nil }
func (f *funcAgent) Memory() types.Memory { return nil }

func (f *funcAgent) PerformTask(ctx context.Context, task *agent.Task, ec *agent.ExecutionContext) *agent.Future {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	return agent.Async(func() (string, error) {
		_ = task.Transition(agent.StatusInProgress)
		out, err := f.fn(ctx, task, ec)
		if err != nil {
			task.Complete(agent.Failed(err))
			if out == "" {
				out = "Error: " + err.Error()
			}
			return out, err
		}
		task.Complete(agent.Succeeded(out))
		return out, nil
	})
}

func (f *funcAgent) Close() error {
	f.closed.Add(1)
	return f.closeErr
}

func (f *funcAgent) received() []*agent.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*agent.Task(nil), f.tasks...)
}

// constant 固定输出的函数
func constant(out string) func(context.Context, *agent.Task, *agent.ExecutionContext) (string, error) {
	return func(context.Context, *agent.Task, *agent.ExecutionContext) (string, error) {
		return out, nil
	}
}

// =============================================================================
// 🧪 回调、事件与通知记录
// =============================================================================

type callbackRecorder struct {
	mu      sync.Mutex
	results []agent.TaskResult
}

func (c *callbackRecorder) callback(r agent.TaskResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *callbackRecorder) all() []agent.TaskResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]agent.TaskResult(nil), c.results...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []agent.Event
}

func (s *recordingSink) Publish(e agent.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) Events() []agent.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.Event(nil), s.events...)
}

// autoResponder 收到人工输入请求后立即回复固定内容
type autoResponder struct {
	input    string
	settled  atomic.Int32
	requests atomic.Int32
}

func (r *autoResponder) HumanInputRequested(_ string, task *agent.Task, _ string) {
	r.requests.Add(1)
	go func() { _ = task.SetHumanInput(r.input) }()
}

func (r *autoResponder) HumanInputSettled(*agent.Task) { r.settled.Add(1) }

// =============================================================================
// 🧪 断言辅助
// =============================================================================

func hasLog(ec *agent.ExecutionContext, substr string) bool {
	for _, e := range ec.Logs() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// runKeyData 返回顺序策略写入的那一组任务内存
func runKeyData(t *testing.T, ec *agent.ExecutionContext, description string) map[string]any {
	t.Helper()
	for _, id := range ec.TaskIDs() {
		if strings.HasPrefix(id, description+"_") {
			return ec.TaskDataSnapshot(id)
		}
	}
	t.Fatalf("no run key with prefix %q", description+"_")
	return nil
}
