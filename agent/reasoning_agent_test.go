package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/BaSui01/agentcrew/internal/pool"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/testutil"
	"github.com/BaSui01/agentcrew/testutil/fixtures"
	"github.com/BaSui01/agentcrew/testutil/mocks"
	"github.com/BaSui01/agentcrew/types"
	"github.com/prometheus/client_golang/prometheus"
	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 辅助
// =============================================================================

func newTestAgent(t *testing.T, backend llm.Completer, cfg ReasoningConfig, opts ...ReasoningOption) *ReasoningAgent {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "writer"
	}
	if cfg.Role == "" {
		cfg.Role = "a technical writer"
	}
	a, err := NewReasoningAgent(cfg, backend, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// callbackRecorder 记录回调调用
type callbackRecorder struct {
	mu      sync.Mutex
	results []TaskResult
}

func (c *callbackRecorder) callback(r TaskResult) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

func (c *callbackRecorder) all() []TaskResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]TaskResult(nil), c.results...)
}

func awaitFuture(t *testing.T, f *Future) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := f.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "future did not resolve in time")
	return out, err
}

func hasLog(ec *ExecutionContext, substr string) bool {
	for _, e := range ec.Logs() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// =============================================================================
// ⚙️ 构造
// =============================================================================

func TestNewReasoningAgent_Validation(t *testing.T) {
	_, err := NewReasoningAgent(ReasoningConfig{}, llm.EchoCompleter{}, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = NewReasoningAgent(ReasoningConfig{Name: "a", HumanInputTimeout: -time.Second}, llm.EchoCompleter{}, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = NewReasoningAgent(ReasoningConfig{Name: "a"}, nil, nil)
	assert.ErrorIs(t, err, ErrBackendNotSet)
}

func TestNewReasoningAgent_Defaults(t *testing.T) {
	a := newTestAgent(t, llm.EchoCompleter{}, ReasoningConfig{PoolSize: 1})

	cfg := a.Config()
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 2, cfg.PoolSize, "pool size is at least 2")
	assert.Equal(t, 3, cfg.MemoryTopK)
	assert.Equal(t, "writer", a.Name())
	assert.Equal(t, "a technical writer", a.Role())
	assert.NotNil(t, a.Memory())
	assert.Empty(t, a.Tools())
}

func TestReasoningAgent_ToolsIsCopy(t *testing.T) {
	a := newTestAgent(t, llm.EchoCompleter{}, ReasoningConfig{}, WithTools(mocks.NewTool("echo", "x")))
	tools := a.Tools()
	tools[0] = nil
	assert.NotNil(t, a.Tools()[0])
}

// =============================================================================
// 🎯 推理分支
// =============================================================================

func TestPerformTask_FinalAnswer(t *testing.T) {
	backend := mocks.NewScriptedCompleter("The answer is 42.")
	mem := mocks.NewMemory()
	a := newTestAgent(t, backend, ReasoningConfig{}, WithMemory(mem))

	rec := &callbackRecorder{}
	task := NewTask("Compute the answer", WithCallback(rec.callback))
	ec := NewExecutionContext()

	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, ec))
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", out)

	assert.Equal(t, StatusCompleted, task.Status())
	assert.Equal(t, "writer", task.AssignedAgent())
	assert.Equal(t, []TaskResult{Succeeded("The answer is 42.")}, rec.all())

	v, ok := ec.TaskData(task.ID(), "writer_final_output")
	require.True(t, ok)
	assert.Equal(t, "The answer is 42.", v)

	assert.Contains(t, mem.Keys(), fmt.Sprintf("task_summary:%s:%s", task.ID(), task.Description()))
	assert.True(t, hasLog(ec, fmt.Sprintf("Agent writer received task: Compute the answer (ID: %s)", task.ID())))
	assert.Equal(t, 1, backend.Calls())
}

func TestPerformTask_EchoBackend(t *testing.T) {
	a := newTestAgent(t, llm.EchoCompleter{}, ReasoningConfig{})
	out, err := awaitFuture(t, a.PerformTask(context.Background(), NewTask("say hello"), nil))
	require.NoError(t, err)
	assert.Equal(t, "Echo: say hello", out)
}

func TestPerformTask_ToolSuccess(t *testing.T) {
	backend := mocks.NewScriptedCompleter(
		fixtures.ToolCallResponse("echo", map[string]any{"input": "ping"}),
		"Final: pong",
	)
	tool := mocks.NewTool("echo", "pong")
	mem := mocks.NewMemory()
	a := newTestAgent(t, backend, ReasoningConfig{}, WithTools(tool), WithMemory(mem))

	task := NewTask("Use the echo tool")
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))
	require.NoError(t, err)
	assert.Equal(t, "Final: pong", out)

	calls := tool.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"input": "ping"}, calls[0].Params)

	prompts := backend.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "No history yet.")
	assert.Contains(t, prompts[1], "Tool echo output: pong")

	v, ok, err := mem.Get(context.Background(), "tool_interaction:echo:"+task.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pong", v)
}

func TestPerformTask_ToolErrorIsAbsorbed(t *testing.T) {
	backend := mocks.NewScriptedCompleter(
		fixtures.ToolCallJSON("flaky", map[string]any{}),
		"Recovered without the tool.",
	)
	tool := mocks.NewTool("flaky", "").WithError(errors.New("service unavailable"))
	mem := mocks.NewMemory()
	a := newTestAgent(t, backend, ReasoningConfig{}, WithTools(tool), WithMemory(mem))

	task := NewTask("Try the flaky tool")
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))
	require.NoError(t, err)
	assert.Equal(t, "Recovered without the tool.", out)

	prompts := backend.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "Tool flaky execution failed: service unavailable")

	v, ok, _ := mem.Get(context.Background(), "tool_error:flaky:"+task.ID())
	require.True(t, ok)
	assert.Equal(t, "service unavailable", v)
}

func TestPerformTask_UnknownToolTriggersAnotherCall(t *testing.T) {
	raw := fixtures.ToolCallResponse("ghost", map[string]any{"x": 1})
	backend := mocks.NewScriptedCompleter(raw, "done")
	mem := mocks.NewMemory()
	a := newTestAgent(t, backend, ReasoningConfig{}, WithMemory(mem))

	task := NewTask("Call a tool that does not exist")
	ec := NewExecutionContext()
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, ec))
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	require.Equal(t, 2, backend.Calls())
	assert.Contains(t, backend.Prompts()[1], "Attempted to use unknown tool: ghost")
	assert.True(t, hasLog(ec, "attempted to use unknown tool: ghost"))

	v, ok, _ := mem.Get(context.Background(), "unknown_tool_attempt:ghost:"+task.ID())
	require.True(t, ok)
	assert.Equal(t, raw, v)
}

// markerCounter 只统计历史中的工具输出条目
type markerCounter string

func (m markerCounter) CountTokens(text string) int { return strings.Count(text, string(m)) }

func TestPerformTask_PromptTokenBudgetDropsOldestHistory(t *testing.T) {
	call := fixtures.ToolCallResponse("echo", map[string]any{"input": "ping"})
	backend := mocks.NewScriptedCompleter(call, call, "done")
	tool := mocks.NewTool("echo", "pong")
	a := newTestAgent(t, backend, ReasoningConfig{PromptTokenBudget: 1},
		WithTools(tool), WithMemory(mocks.NewMemory()), WithTokenCounter(markerCounter("Tool echo output:")))

	out, err := awaitFuture(t, a.PerformTask(context.Background(), NewTask("Echo twice"), nil))
	require.NoError(t, err)
	assert.Equal(t, "done", out)

	prompts := backend.Prompts()
	require.Len(t, prompts, 3)
	assert.Equal(t, 1, strings.Count(prompts[1], "Tool echo output: pong"))
	assert.NotContains(t, prompts[1], "omitted")
	assert.Equal(t, 1, strings.Count(prompts[2], "Tool echo output: pong"))
	assert.Contains(t, prompts[2], "(1 earlier entries omitted)")
}

func TestNewReasoningAgent_NegativeTokenBudget(t *testing.T) {
	_, err := NewReasoningAgent(ReasoningConfig{Name: "a", PromptTokenBudget: -1}, llm.EchoCompleter{}, nil)
	assert.ErrorIs(t, err, ErrConfigInvalid)
}

func TestPerformTask_MaxIterations(t *testing.T) {
	backend := mocks.NewScriptedCompleter().WithFallback(fixtures.ToolCallJSON("ghost", nil))
	mem := mocks.NewMemory()
	a := newTestAgent(t, backend, ReasoningConfig{MaxIterations: 3}, WithMemory(mem))

	rec := &callbackRecorder{}
	task := NewTask("Loop forever", WithCallback(rec.callback))
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))

	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, "Error: Agent reached maximum iterations.", out)
	assert.Equal(t, 3, backend.Calls())
	assert.Equal(t, StatusFailed, task.Status())
	assert.Equal(t, []TaskResult{{Status: StatusFailed, Error: "Agent reached maximum iterations."}}, rec.all())

	v, ok, _ := mem.Get(context.Background(), fmt.Sprintf("task_failure_max_iterations:%s:%s", task.ID(), task.Description()))
	require.True(t, ok)
	assert.Equal(t, "Agent reached maximum iterations.", v)
}

func TestPerformTask_BackendError(t *testing.T) {
	boom := errors.New("rate limited")
	backend := mocks.NewScriptedCompleter().ThenError(boom)
	a := newTestAgent(t, backend, ReasoningConfig{})

	rec := &callbackRecorder{}
	task := NewTask("t", WithCallback(rec.callback))
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Error: model backend: rate limited", out)
	assert.Equal(t, StatusFailed, task.Status())
	require.Len(t, rec.all(), 1)
	assert.Equal(t, "model backend: rate limited", rec.all()[0].Error)
}

func TestPerformTask_MemoryWriteFailureDoesNotFailTask(t *testing.T) {
	backend := mocks.NewScriptedCompleter("final")
	mem := mocks.NewMemory().FailAddWithPrefix("", errors.New("disk full"))
	a := newTestAgent(t, backend, ReasoningConfig{}, WithMemory(mem))

	out, err := awaitFuture(t, a.PerformTask(context.Background(), NewTask("t"), nil))
	require.NoError(t, err)
	assert.Equal(t, "final", out)
}

func TestPerformTask_MemoryRecall(t *testing.T) {
	mem := mocks.NewMemory()
	require.NoError(t, mem.Add(context.Background(), "task_summary:old:Draft the outline", "Outline v1"))
	backend := mocks.NewScriptedCompleter("ok")
	a := newTestAgent(t, backend, ReasoningConfig{}, WithMemory(mem))

	_, err := awaitFuture(t, a.PerformTask(context.Background(), NewTask("Draft the outline"), nil))
	require.NoError(t, err)
	assert.Contains(t, backend.Prompts()[0], "Previously recorded information that might be relevant:\n- Outline v1")
}

func TestPerformTask_TerminalTask(t *testing.T) {
	backend := mocks.NewScriptedCompleter("never")
	a := newTestAgent(t, backend, ReasoningConfig{})

	task := NewTask("done already")
	require.NoError(t, task.Transition(StatusInProgress))
	require.True(t, task.Complete(Succeeded("x")))

	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))
	assert.ErrorIs(t, err, ErrTaskTerminal)
	assert.True(t, strings.HasPrefix(out, "Error: "))
	assert.Zero(t, backend.Calls())
}

func TestPerformTask_CancelledBeforeReasoning(t *testing.T) {
	backend := mocks.NewScriptedCompleter("never")
	a := newTestAgent(t, backend, ReasoningConfig{})

	task := NewTask("t")
	out, err := awaitFuture(t, a.PerformTask(testutil.CancelledContext(), task, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.HasPrefix(out, "Error: "))
	assert.Equal(t, StatusFailed, task.Status())
	assert.Zero(t, backend.Calls())
}

func TestPerformTask_CancelledMidLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := mocks.NewScriptedCompleter().
		WithFallback(fixtures.ToolCallJSON("echo", nil)).
		OnCall(func(n int) {
			if n == 2 {
				cancel()
			}
		})
	a := newTestAgent(t, backend, ReasoningConfig{MaxIterations: 10}, WithTools(mocks.NewTool("echo", "x")))

	task := NewTask("t")
	_, err := awaitFuture(t, a.PerformTask(ctx, task, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, task.Status())
	assert.Equal(t, 2, backend.Calls())
}

func TestPerformTask_PoolClosed(t *testing.T) {
	a := newTestAgent(t, mocks.NewScriptedCompleter("x"), ReasoningConfig{})
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	task := NewTask("t")
	_, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
	assert.Equal(t, StatusFailed, task.Status())
}

func TestPerformTask_ManyTasksBeyondQueue(t *testing.T) {
	gate := make(chan struct{})
	backend := mocks.NewScriptedCompleter().WithGate(gate).WithHandler(
		func(_ context.Context, prompt string) (string, bool, error) {
			for _, line := range strings.Split(prompt, "\n") {
				if desc, ok := strings.CutPrefix(line, llm.DescriptionLinePrefix+" "); ok {
					return "done: " + desc, true, nil
				}
			}
			return "", false, nil
		})
	a := newTestAgent(t, backend, ReasoningConfig{PoolSize: 2, QueueSize: 1})

	const n = 12
	futures := make([]*Future, n)
	for i := range futures {
		futures[i] = a.PerformTask(context.Background(), NewTask(fmt.Sprintf("task-%d", i)), nil)
	}
	for _, f := range futures {
		assert.False(t, f.IsDone(), "PerformTask must not block or resolve early")
	}
	close(gate)

	for i, f := range futures {
		out, err := awaitFuture(t, f)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("done: task-%d", i), out)
	}
}

// =============================================================================
// 🙋 人工输入分支
// =============================================================================

func TestPerformTask_HumanInput(t *testing.T) {
	backend := mocks.NewScriptedCompleter()
	mem := mocks.NewMemory()
	a := newTestAgent(t, backend, ReasoningConfig{}, WithMemory(mem))

	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	ec := NewExecutionContext(WithHumanInputNotifier(notifier), WithEventSink(sink))
	rec := &callbackRecorder{}
	task := NewTask("Approve the release", WithHumanInputRequired(), WithCallback(rec.callback))

	fut := a.PerformTask(context.Background(), task, ec)

	assert.Equal(t, StatusAwaitingHumanInput, task.Status())
	assert.False(t, fut.IsDone())
	requested, _ := notifier.counts()
	assert.Equal(t, 1, requested)
	assert.Len(t, sink.OfType(EventHumanInputRequested), 1)
	assert.True(t, hasLog(ec, "is waiting for human input"))

	// 等待期间 Future 保持未完成
	time.Sleep(20 * time.Millisecond)
	assert.False(t, fut.IsDone())
	assert.Empty(t, rec.all())

	require.NoError(t, task.SetHumanInput("approved"))
	out, err := awaitFuture(t, fut)
	require.NoError(t, err)
	assert.Equal(t, "approved", out)

	assert.Equal(t, StatusCompleted, task.Status())
	assert.Equal(t, []TaskResult{Succeeded("approved")}, rec.all())
	assert.Zero(t, backend.Calls(), "human input completes without a model call")

	v, ok := ec.TaskData(task.ID(), "writer_human_input_result")
	require.True(t, ok)
	assert.Equal(t, "approved", v)

	v, ok, _ = mem.Get(context.Background(), fmt.Sprintf("human_input_received:%s:%s", task.ID(), task.Description()))
	require.True(t, ok)
	assert.Equal(t, "approved", v)

	testutil.AssertEventuallyTrue(t, func() bool {
		_, settled := notifier.counts()
		return settled == 1
	}, time.Second)
	assert.ErrorIs(t, task.SetHumanInput("again"), ErrNotAwaitingHumanInput)
}

func TestPerformTask_HumanInputFromNotifier(t *testing.T) {
	a := newTestAgent(t, mocks.NewScriptedCompleter(), ReasoningConfig{})
	notifier := &recordingNotifier{onRequest: func(task *Task) {
		go func() { _ = task.SetHumanInput("from operator") }()
	}}
	ec := NewExecutionContext(WithHumanInputNotifier(notifier))

	out, err := awaitFuture(t, a.PerformTask(context.Background(), NewTask("t", WithHumanInputRequired()), ec))
	require.NoError(t, err)
	assert.Equal(t, "from operator", out)
}

func TestPerformTask_HumanInputAlreadyProvided(t *testing.T) {
	backend := mocks.NewScriptedCompleter("Proceeding as approved.")
	a := newTestAgent(t, backend, ReasoningConfig{})

	task := NewTask("Deploy", WithHumanInputRequired(), WithHumanInput("yes, deploy"))
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))
	require.NoError(t, err)
	assert.Equal(t, "Proceeding as approved.", out)
	assert.Contains(t, backend.Prompts()[0], "Human Input Provided: yes, deploy")
}

func TestPerformTask_HumanInputTimeout(t *testing.T) {
	a := newTestAgent(t, mocks.NewScriptedCompleter(), ReasoningConfig{HumanInputTimeout: 30 * time.Millisecond})

	notifier := &recordingNotifier{}
	rec := &callbackRecorder{}
	task := NewTask("t", WithHumanInputRequired(), WithCallback(rec.callback))
	out, err := awaitFuture(t, a.PerformTask(context.Background(), task, NewExecutionContext(WithHumanInputNotifier(notifier))))

	assert.ErrorIs(t, err, ErrHumanInputTimeout)
	assert.Equal(t, "Error: "+ErrHumanInputTimeout.Error(), out)
	assert.Equal(t, StatusFailed, task.Status())
	assert.ErrorIs(t, task.SetHumanInput("late"), ErrNotAwaitingHumanInput)
	assert.Len(t, rec.all(), 1)

	_, settled := notifier.counts()
	assert.Equal(t, 1, settled)
}

func TestPerformTask_HumanInputCancelled(t *testing.T) {
	a := newTestAgent(t, mocks.NewScriptedCompleter(), ReasoningConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	task := NewTask("t", WithHumanInputRequired())
	fut := a.PerformTask(ctx, task, nil)
	require.Equal(t, StatusAwaitingHumanInput, task.Status())

	cancel()
	_, err := awaitFuture(t, fut)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, task.Status())
}

func TestPerformTask_HumanInputContinuationFailure(t *testing.T) {
	boom := errors.New("store offline")
	mem := mocks.NewMemory().FailAddWithPrefix("human_input_received:", boom)
	a := newTestAgent(t, mocks.NewScriptedCompleter(), ReasoningConfig{}, WithMemory(mem))

	rec := &callbackRecorder{}
	task := NewTask("t", WithHumanInputRequired(), WithCallback(rec.callback))
	fut := a.PerformTask(context.Background(), task, nil)
	require.NoError(t, task.SetHumanInput("yes"))

	out, err := awaitFuture(t, fut)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Error processing human input: record human input: store offline", out)
	assert.Equal(t, StatusFailed, task.Status())

	results := rec.all()
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)

	v, ok, _ := mem.Get(context.Background(), "human_input_failure:"+task.ID())
	require.True(t, ok)
	assert.Equal(t, "store offline", v)
}

func TestPerformTask_AlreadyAwaiting(t *testing.T) {
	a := newTestAgent(t, mocks.NewScriptedCompleter(), ReasoningConfig{})
	task := NewTask("t", WithHumanInputRequired())
	first := a.PerformTask(context.Background(), task, nil)

	_, err := awaitFuture(t, a.PerformTask(context.Background(), task, nil))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, task.SetHumanInput("ok"))
	out, err := awaitFuture(t, first)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

// =============================================================================
// 📊 可观测性
// =============================================================================

func TestPerformTask_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	backend := mocks.NewScriptedCompleter("ok").ThenError(errors.New("boom"))
	a := newTestAgent(t, backend, ReasoningConfig{}, WithTracer(tp.Tracer("test")))

	ok := NewTask("good")
	_, err := awaitFuture(t, a.PerformTask(context.Background(), ok, nil))
	require.NoError(t, err)
	bad := NewTask("bad")
	_, err = awaitFuture(t, a.PerformTask(context.Background(), bad, nil))
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	byTask := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		assert.Equal(t, "ReasoningAgent.PerformTask", s.Name())
		for _, kv := range s.Attributes() {
			if kv.Key == "task.id" {
				byTask[kv.Value.AsString()] = s
			}
		}
	}
	require.Contains(t, byTask, ok.ID())
	require.Contains(t, byTask, bad.ID())
	assert.Equal(t, codes.Unset, byTask[ok.ID()].Status().Code)
	assert.Equal(t, codes.Error, byTask[bad.ID()].Status().Code)
	assert.Contains(t, byTask[bad.ID()].Attributes(), attribute.String("task.status", "FAILED"))
}

func TestPerformTask_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg, zap.NewNop())

	backend := mocks.NewScriptedCompleter(
		fixtures.ToolCallJSON("echo", nil),
		fixtures.ToolCallJSON("ghost", nil),
		"done",
	)
	a := newTestAgent(t, backend, ReasoningConfig{}, WithMetrics(collector), WithTools(mocks.NewTool("echo", "x")))

	_, err := awaitFuture(t, a.PerformTask(context.Background(), NewTask("t"), nil))
	require.NoError(t, err)

	expected := `
# HELP test_agent_tasks_total Total number of tasks finished by agents
# TYPE test_agent_tasks_total counter
test_agent_tasks_total{agent="writer",status="COMPLETED"} 1
# HELP test_agent_tool_calls_total Total number of tool calls by outcome
# TYPE test_agent_tool_calls_total counter
test_agent_tool_calls_total{agent="writer",outcome="success",tool="echo"} 1
test_agent_tool_calls_total{agent="writer",outcome="unknown",tool="ghost"} 1
`
	assert.NoError(t, prom.GatherAndCompare(reg, strings.NewReader(expected),
		"test_agent_tasks_total", "test_agent_tool_calls_total"))
}

// 编译期检查
var (
	_ Agent      = (*ReasoningAgent)(nil)
	_ types.Tool = (*mocks.Tool)(nil)
)

func TestPerformTask_CallbackFiresOnceUnderConcurrency(t *testing.T) {
	var calls atomic.Int32
	a := newTestAgent(t, mocks.NewScriptedCompleter().WithFallback("ok"), ReasoningConfig{PoolSize: 4})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := NewTask("t", WithCallback(func(TaskResult) { calls.Add(1) }))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = a.PerformTask(ctx, task, nil).Await(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(20), calls.Load())
}
