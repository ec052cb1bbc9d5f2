package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/BaSui01/agentcrew/agent/memory"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/BaSui01/agentcrew/internal/pool"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/llm/tokenizer"
	"github.com/BaSui01/agentcrew/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// maxIterationsMessage 超过迭代上限时回调与输出使用的文本
const maxIterationsMessage = "Agent reached maximum iterations."

// =============================================================================
// ⚙️ 配置
// =============================================================================

// ReasoningConfig 推理 Agent 配置
type ReasoningConfig struct {
	Name string `json:"name"`
	Role string `json:"role"`

	// MaxIterations 单个任务的模型调用上限
	MaxIterations int `json:"max_iterations"`

	// PoolSize 工作池 worker 数，至少 2
	PoolSize  int `json:"pool_size"`
	QueueSize int `json:"queue_size"`

	// MemoryTopK 每次构造 prompt 时检索的记忆条数
	MemoryTopK int `json:"memory_top_k"`

	// HumanInputTimeout 等待人工输入的超时，0 表示无限等待
	HumanInputTimeout time.Duration `json:"human_input_timeout"`

	// PromptTokenBudget prompt 的 token 上限，超出时先丢弃最早的历史；0 表示不限制
	PromptTokenBudget int `json:"prompt_token_budget"`
}

// DefaultReasoningConfig 返回默认配置
func DefaultReasoningConfig() ReasoningConfig {
	return ReasoningConfig{
		MaxIterations: 5,
		PoolSize:      max(2, runtime.GOMAXPROCS(0)),
		QueueSize:     64,
		MemoryTopK:    3,
	}
}

// withDefaults 零值字段回退到默认值
func (c ReasoningConfig) withDefaults() ReasoningConfig {
	d := DefaultReasoningConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	c.PoolSize = max(2, c.PoolSize)
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.MemoryTopK <= 0 {
		c.MemoryTopK = d.MemoryTopK
	}
	return c
}

// Validate 校验配置
func (c ReasoningConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrConfigInvalid)
	}
	if c.HumanInputTimeout < 0 {
		return fmt.Errorf("%w: human input timeout must not be negative", ErrConfigInvalid)
	}
	if c.PromptTokenBudget < 0 {
		return fmt.Errorf("%w: prompt token budget must not be negative", ErrConfigInvalid)
	}
	return nil
}

// =============================================================================
// 🤖 ReasoningAgent
// =============================================================================

// ReasoningAgent 迭代调用模型并按需调用工具的 Agent
//
// 推理循环与人工输入后的续作都运行在 Agent 自有的有界工作池中；
// 等待人工输入不占用 worker。
type ReasoningAgent struct {
	cfg     ReasoningConfig
	backend llm.Completer
	tools   []types.Tool
	toolIdx map[string]types.Tool
	memory  types.Memory
	counter tokenizer.Counter

	pool      *pool.GoroutinePool
	collector *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger

	closeOnce sync.Once
}

// ReasoningOption 推理 Agent 选项
type ReasoningOption func(*ReasoningAgent)

// WithTools 声明可用工具，同名工具后者覆盖前者
func WithTools(tools ...types.Tool) ReasoningOption {
	return func(a *ReasoningAgent) { a.tools = append(a.tools, tools...) }
}

// WithMemory 指定记忆（默认为容量 100 的短期记忆）
func WithMemory(m types.Memory) ReasoningOption {
	return func(a *ReasoningAgent) { a.memory = m }
}

// WithMetrics 记录任务、迭代与工具调用指标
func WithMetrics(c *metrics.Collector) ReasoningOption {
	return func(a *ReasoningAgent) { a.collector = c }
}

// WithTracer 指定 tracer（默认使用全局 TracerProvider）
func WithTracer(t trace.Tracer) ReasoningOption {
	return func(a *ReasoningAgent) { a.tracer = t }
}

// WithTokenCounter 指定 prompt 预算使用的计数器（默认为字符估算）
func WithTokenCounter(c tokenizer.Counter) ReasoningOption {
	return func(a *ReasoningAgent) { a.counter = c }
}

// NewReasoningAgent 创建推理 Agent
func NewReasoningAgent(cfg ReasoningConfig, backend llm.Completer, logger *zap.Logger, opts ...ReasoningOption) (*ReasoningAgent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, ErrBackendNotSet
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	a := &ReasoningAgent{
		cfg:     cfg,
		backend: backend,
		tracer:  otel.Tracer("github.com/BaSui01/agentcrew/agent"),
		logger:  logger.With(zap.String("component", "agent"), zap.String("agent", cfg.Name)),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memory == nil {
		a.memory = memory.NewShortTermMemory(memory.DefaultShortTermCapacity)
	}
	if a.counter == nil {
		a.counter = tokenizer.Estimator{}
	}

	a.toolIdx = make(map[string]types.Tool, len(a.tools))
	for _, t := range a.tools {
		a.toolIdx[t.Name()] = t
	}

	a.pool = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		MaxWorkers: cfg.PoolSize,
		QueueSize:  cfg.QueueSize,
		PanicHandler: func(r any) {
			a.logger.Error("reasoning job panicked", zap.Any("recover", r))
		},
	})

	return a, nil
}

// Name Agent 名称
func (a *ReasoningAgent) Name() string { return a.cfg.Name }

// Role Agent 角色
func (a *ReasoningAgent) Role() string { return a.cfg.Role }

// Memory Agent 记忆
func (a *ReasoningAgent) Memory() types.Memory { return a.memory }

// Config 生效的配置（已应用默认值）
func (a *ReasoningAgent) Config() ReasoningConfig { return a.cfg }

// Tools 声明的工具列表副本
func (a *ReasoningAgent) Tools() []types.Tool {
	out := make([]types.Tool, len(a.tools))
	copy(out, a.tools)
	return out
}

// Stats 工作池统计
func (a *ReasoningAgent) Stats() pool.GoroutinePoolStats {
	return a.pool.Stats()
}

// Close 关闭工作池：已排队的任务执行完毕，新提交返回 pool.ErrPoolClosed
func (a *ReasoningAgent) Close() error {
	a.closeOnce.Do(func() {
		a.pool.Close()
		a.logger.Debug("agent closed")
	})
	return nil
}

// =============================================================================
// 🎯 PerformTask
// =============================================================================

// PerformTask 执行任务，立即返回 Future
func (a *ReasoningAgent) PerformTask(ctx context.Context, task *Task, ec *ExecutionContext) *Future {
	if ec == nil {
		ec = NewExecutionContext(WithContextLogger(a.logger))
	}
	ec.Logf("Agent %s received task: %s (ID: %s)", a.Name(), task.Description(), task.ID())

	if status := task.Status(); status.IsTerminal() {
		err := fmt.Errorf("%w: task %s is %s", ErrTaskTerminal, task.ID(), status)
		return ResolvedFuture("Error: "+err.Error(), err)
	} else if status == StatusAwaitingHumanInput {
		err := fmt.Errorf("%w: task %s is already awaiting human input", ErrInvalidTransition, task.ID())
		return ResolvedFuture("Error: "+err.Error(), err)
	}

	ctx, span := a.tracer.Start(ctx, "ReasoningAgent.PerformTask", trace.WithAttributes(
		attribute.String("agent.name", a.Name()),
		attribute.String("task.id", task.ID()),
	))

	r := &taskRun{
		agent:  a,
		task:   task,
		ec:     ec,
		fut:    NewFuture(),
		span:   span,
		start:  time.Now(),
		logger: a.logger.With(zap.String("task_id", task.ID()), zap.String("run_id", ec.RunID())),
	}

	task.AssignTo(a.Name())
	if task.Status() != StatusInProgress {
		if err := task.Transition(StatusInProgress); err != nil {
			r.fail(Failed(err), "Error: "+err.Error(), err)
			return r.fut
		}
	}
	r.transitioned(StatusInProgress)

	if task.RequiresHumanInput() {
		if _, ok := task.HumanInput(); !ok {
			r.awaitHumanInput(ctx)
			return r.fut
		}
	}

	r.submit(ctx, r.reason)
	return r.fut
}

// taskRun 单次 PerformTask 的执行状态
type taskRun struct {
	agent  *ReasoningAgent
	task   *Task
	ec     *ExecutionContext
	fut    *Future
	span   trace.Span
	start  time.Time
	logger *zap.Logger
}

// submit 提交到工作池；队列已满时在独立 goroutine 中阻塞提交
func (r *taskRun) submit(ctx context.Context, job func(context.Context)) {
	wrapped := func(ctx context.Context) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%w: %v", pool.ErrTaskPanicked, rec)
				r.fail(Failed(err), "Error: "+err.Error(), err)
			}
		}()
		job(ctx)
		return nil
	}

	err := r.agent.pool.TrySubmit(ctx, wrapped)
	if errors.Is(err, pool.ErrPoolFull) {
		go func() {
			if err := r.agent.pool.Submit(ctx, wrapped); err != nil {
				r.fail(Failed(err), "Error: "+err.Error(), err)
			}
		}()
		return
	}
	if err != nil {
		r.fail(Failed(err), "Error: "+err.Error(), err)
	}
}

// reason 推理循环：调用模型，解析工具调用，直到给出最终答案或达到上限
func (r *taskRun) reason(ctx context.Context) {
	a := r.agent
	var history []string
	humanInput, hasHumanInput := r.task.HumanInput()

	for iteration := 0; ; iteration++ {
		if err := ctx.Err(); err != nil {
			a.collector.RecordIterations(a.Name(), iteration)
			r.fail(Failed(err), "Error: "+err.Error(), err)
			return
		}
		if iteration >= a.cfg.MaxIterations {
			a.collector.RecordIterations(a.Name(), iteration)
			r.ec.Logf("Agent %s reached maximum iterations for task %s", a.Name(), r.task.ID())
			r.remember(ctx, fmt.Sprintf("task_failure_max_iterations:%s:%s", r.task.ID(), r.task.Description()), maxIterationsMessage)
			r.fail(TaskResult{Status: StatusFailed, Error: maxIterationsMessage}, "Error: "+maxIterationsMessage, ErrMaxIterations)
			return
		}

		data := promptData{
			name:     a.Name(),
			role:     a.Role(),
			task:     r.task,
			memories: r.recall(ctx),
			tools:    a.tools,
			history:  history,
		}
		if hasHumanInput {
			data.humanInput = &humanInput
		}

		r.logger.Debug("calling model", zap.Int("iteration", iteration+1))
		prompt, dropped := fitPrompt(data, a.cfg.PromptTokenBudget, a.counter)
		if dropped > 0 {
			r.logger.Debug("prompt trimmed to token budget",
				zap.Int("dropped_history", dropped),
				zap.Int("budget", a.cfg.PromptTokenBudget))
		}
		response, err := a.backend.Complete(ctx, prompt)
		if err != nil {
			a.collector.RecordIterations(a.Name(), iteration+1)
			r.ec.Logf("Agent %s model call failed for task %s: %v", a.Name(), r.task.ID(), err)
			err = fmt.Errorf("model backend: %w", err)
			r.fail(Failed(err), "Error: "+err.Error(), err)
			return
		}

		call, ok := ExtractToolCall(response)
		if !ok {
			a.collector.RecordIterations(a.Name(), iteration+1)
			r.finish(ctx, response)
			return
		}

		tool, declared := a.toolIdx[call.ToolName]
		if !declared {
			r.ec.Logf("Agent %s attempted to use unknown tool: %s", a.Name(), call.ToolName)
			a.collector.RecordToolCall(a.Name(), call.ToolName, "unknown")
			r.remember(ctx, fmt.Sprintf("unknown_tool_attempt:%s:%s", call.ToolName, r.task.ID()), response)
			history = append(history, "Attempted to use unknown tool: "+call.ToolName)
			continue
		}

		r.ec.Logf("Agent %s using tool %s", a.Name(), call.ToolName)
		output, err := tool.Use(ctx, call.Parameters)
		if err != nil {
			a.collector.RecordToolCall(a.Name(), call.ToolName, "error")
			r.remember(ctx, fmt.Sprintf("tool_error:%s:%s", call.ToolName, r.task.ID()), err.Error())
			history = append(history, fmt.Sprintf("Tool %s execution failed: %v", call.ToolName, err))
			continue
		}
		a.collector.RecordToolCall(a.Name(), call.ToolName, "success")
		r.remember(ctx, fmt.Sprintf("tool_interaction:%s:%s", call.ToolName, r.task.ID()), output)
		history = append(history, fmt.Sprintf("Tool %s output: %s", call.ToolName, output))
	}
}

// finish 记录最终答案并完成任务
func (r *taskRun) finish(ctx context.Context, output string) {
	a := r.agent
	r.remember(ctx, fmt.Sprintf("task_summary:%s:%s", r.task.ID(), r.task.Description()), output)
	r.ec.SetTaskData(r.task.ID(), a.Name()+"_final_output", output)
	r.ec.Logf("Agent %s completed task %s", a.Name(), r.task.ID())
	r.succeed(output)
}

// recall 检索相关记忆，失败时返回空
func (r *taskRun) recall(ctx context.Context) []any {
	mem := r.agent.memory
	if mem == nil {
		return nil
	}
	items, err := mem.Search(ctx, r.task.Description(), r.agent.cfg.MemoryTopK)
	if err != nil {
		r.logger.Warn("memory search failed", zap.Error(err))
		return nil
	}
	return items
}

// remember 写入记忆，失败只记录告警
func (r *taskRun) remember(ctx context.Context, key string, value any) {
	mem := r.agent.memory
	if mem == nil {
		return
	}
	if err := mem.Add(ctx, key, value); err != nil {
		r.logger.Warn("memory write failed", zap.String("key", key), zap.Error(err))
	}
}

// =============================================================================
// 🙋 人工输入
// =============================================================================

// awaitHumanInput 进入等待并在独立 goroutine 中监听句柄、ctx 与超时
func (r *taskRun) awaitHumanInput(ctx context.Context) {
	a := r.agent
	h, err := r.task.beginHumanWait()
	if err != nil {
		r.fail(Failed(err), "Error: "+err.Error(), err)
		return
	}
	r.transitioned(StatusAwaitingHumanInput)
	a.collector.RecordHumanInputWait(a.Name(), "requested")
	r.ec.Logf("Agent %s is waiting for human input on task: %s (ID: %s)", a.Name(), r.task.Description(), r.task.ID())
	r.ec.RecordStatus(r.task)
	r.recordParentStatus()
	r.ec.humanInputRequested(r.task, a.Name())
	r.span.AddEvent("awaiting_human_input")

	go func() {
		var timeout <-chan time.Time
		if a.cfg.HumanInputTimeout > 0 {
			timer := time.NewTimer(a.cfg.HumanInputTimeout)
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case <-h.Done():
		case <-ctx.Done():
			if r.abandon(h, ctx.Err(), "cancelled") {
				return
			}
		case <-timeout:
			if r.abandon(h, ErrHumanInputTimeout, "timeout") {
				return
			}
		}

		// 放弃失败说明输入已先到达，句柄即将或已经解析
		<-h.Done()
		r.ec.humanInputSettled(r.task)
		r.recordParentStatus()
		a.collector.RecordHumanInputWait(a.Name(), "resolved")
		r.transitioned(StatusInProgress)
		r.submit(context.WithoutCancel(ctx), func(ctx context.Context) {
			r.continueWithHumanInput(ctx, h.value)
		})
	}()
}

// abandon 放弃等待；返回 false 表示人工输入已先到达
func (r *taskRun) abandon(h *humanInputHandle, cause error, outcome string) bool {
	a := r.agent
	if !r.task.abandonHumanWait(h, cause) {
		return false
	}
	r.ec.Logf("Agent %s stopped waiting for human input on task %s: %v", a.Name(), r.task.ID(), cause)
	r.ec.humanInputSettled(r.task)
	r.recordParentStatus()
	a.collector.RecordHumanInputWait(a.Name(), outcome)
	r.transitioned(StatusFailed)
	r.settle("Error: "+cause.Error(), cause)
	return true
}

// recordParentStatus 派生任务的等待状态会同步到原任务，一并发布
func (r *taskRun) recordParentStatus() {
	if p := r.task.Parent(); p != nil {
		r.ec.RecordStatus(p)
	}
}

// continueWithHumanInput 人工输入到达后的续作
func (r *taskRun) continueWithHumanInput(ctx context.Context, value string) {
	a := r.agent
	r.ec.Logf("Agent %s received human input for task %s", a.Name(), r.task.ID())

	key := fmt.Sprintf("human_input_received:%s:%s", r.task.ID(), r.task.Description())
	if a.memory != nil {
		if err := a.memory.Add(ctx, key, value); err != nil {
			r.logger.Error("failed to record human input", zap.Error(err))
			r.remember(ctx, "human_input_failure:"+r.task.ID(), err.Error())
			err = fmt.Errorf("record human input: %w", err)
			r.fail(Failed(err), "Error processing human input: "+err.Error(), err)
			return
		}
	}

	r.ec.SetTaskData(r.task.ID(), a.Name()+"_human_input_result", value)
	r.succeed(value)
}

// =============================================================================
// 🏁 终态
// =============================================================================

func (r *taskRun) succeed(output string) {
	if r.task.Complete(Succeeded(output)) {
		r.transitioned(StatusCompleted)
	}
	r.settle(output, nil)
}

func (r *taskRun) fail(result TaskResult, output string, err error) {
	if r.task.Complete(result) {
		r.transitioned(StatusFailed)
	}
	r.settle(output, err)
}

// settle 发布状态、结束 span 并解析 Future
func (r *taskRun) settle(output string, err error) {
	if !r.fut.Resolve(output, err) {
		return
	}
	status := r.task.Status()
	r.ec.RecordStatus(r.task)
	r.agent.collector.RecordTask(r.agent.Name(), string(status), time.Since(r.start))

	r.span.SetAttributes(attribute.String("task.status", string(status)))
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		r.logger.Debug("task failed", zap.Error(err))
	}
	r.span.End()
}

func (r *taskRun) transitioned(to TaskStatus) {
	r.agent.collector.RecordTaskTransition(r.agent.Name(), string(to))
}
