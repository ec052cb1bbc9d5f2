package crews

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config Crew 配置
type Config struct {
	Name       string            `json:"name"`
	Process    ProcessType       `json:"process"`
	Sequential SequentialOptions `json:"sequential"`
}

// Crew 绑定一组 Agent 与一种编排策略的门面
type Crew struct {
	name     string
	agents   []agent.Agent
	strategy Strategy

	notifier  agent.HumanInputNotifier
	sink      agent.EventSink
	collector *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// Option Crew 选项
type Option func(*Crew)

// WithStrategy 使用自定义策略，覆盖 Config.Process
func WithStrategy(s Strategy) Option {
	return func(c *Crew) { c.strategy = s }
}

// WithHumanInputNotifier 每次运行的执行上下文都挂载该通知方
func WithHumanInputNotifier(n agent.HumanInputNotifier) Option {
	return func(c *Crew) { c.notifier = n }
}

// WithEventSink 每次运行的事件发布到 sink
func WithEventSink(s agent.EventSink) Option {
	return func(c *Crew) { c.sink = s }
}

// WithMetrics 记录执行次数与耗时
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Crew) { c.collector = m }
}

// WithTracer 指定 tracer（默认使用全局 TracerProvider）
func WithTracer(t trace.Tracer) Option {
	return func(c *Crew) { c.tracer = t }
}

// NewCrew 创建 Crew
//
// Agent 列表允许为空，此时每次执行都以 "Error: No agents available." 结束；
// 未知的 Process 返回 ErrUnknownProcess。
func NewCrew(cfg Config, agents []agent.Agent, logger *zap.Logger, opts ...Option) (*Crew, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for i, a := range agents {
		if a == nil {
			return nil, fmt.Errorf("agent at index %d is nil", i)
		}
	}

	c := &Crew{
		name:   cfg.Name,
		agents: append([]agent.Agent(nil), agents...),
		tracer: otel.Tracer("github.com/BaSui01/agentcrew/agent/crews"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.strategy == nil {
		s, err := NewStrategy(cfg.Process, cfg.Sequential)
		if err != nil {
			return nil, err
		}
		c.strategy = s
	}
	c.logger = logger.With(
		zap.String("component", "crew"),
		zap.String("crew", cfg.Name),
		zap.String("process", string(c.strategy.Process())),
	)
	return c, nil
}

// Name Crew 名称
func (c *Crew) Name() string { return c.name }

// Process 使用的策略类型
func (c *Crew) Process() ProcessType { return c.strategy.Process() }

// Agents Agent 列表副本
func (c *Crew) Agents() []agent.Agent {
	return append([]agent.Agent(nil), c.agents...)
}

// =============================================================================
// 🚀 执行
// =============================================================================

// Execute 在独立 goroutine 中运行任务，立即返回 Execution
//
// 每次执行使用全新的执行上下文。策略的错误与 panic 都不会逃逸，
// 而是转成 "Error during crew execution: ..." 文本。
func (c *Crew) Execute(ctx context.Context, task *agent.Task) *Execution {
	ec := agent.NewExecutionContext(
		agent.WithContextLogger(c.logger),
		agent.WithHumanInputNotifier(c.notifier),
		agent.WithEventSink(c.sink),
	)
	exec := &Execution{
		task:      task,
		ec:        ec,
		process:   c.strategy.Process(),
		startedAt: time.Now(),
		fut:       agent.NewFuture(),
	}

	if task == nil {
		ec.Log("Crew execution rejected: task is nil")
		exec.fut.Resolve(crewFailurePrefix+ErrNilTask.Error(), ErrNilTask)
		return exec
	}

	go func() {
		out, err := c.run(ctx, task, ec)
		exec.fut.Resolve(out, err)
	}()
	return exec
}

// Run 阻塞执行并返回最终文本
func (c *Crew) Run(ctx context.Context, task *agent.Task) string {
	return c.Execute(ctx, task).Await(ctx)
}

func (c *Crew) run(ctx context.Context, task *agent.Task, ec *agent.ExecutionContext) (output string, err error) {
	process := c.strategy.Process()
	start := time.Now()
	logger := c.logger.With(zap.String("run_id", ec.RunID()), zap.String("task_id", task.ID()))

	ctx, span := c.tracer.Start(ctx, "Crew.Execute", trace.WithAttributes(
		attribute.String("crew.name", c.name),
		attribute.String("crew.process", string(process)),
		attribute.String("run.id", ec.RunID()),
		attribute.Int("crew.agents", len(c.agents)),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			output = crewFailurePrefix + err.Error()
			logger.Error("crew execution panicked", zap.Any("recover", r), zap.Stack("stack"))
			ec.Logf("Crew execution failed for task: %s. Error: %v", task.Description(), err)
		}

		status := "success"
		if err != nil {
			status = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		c.collector.RecordCrewExecution(string(process), status, time.Since(start))
		span.End()
		logger.Info("crew execution finished",
			zap.String("status", status),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	ec.Logf("Crew starting execution with process %s for task: %s", process, task.Description())
	logger.Info("crew execution started", zap.Int("agents", len(c.agents)))

	sctx, sspan := c.tracer.Start(ctx, "Strategy."+string(process))
	output, err = c.strategy.Execute(sctx, task, c.Agents(), ec)
	sspan.End()

	if err != nil && output == "" {
		output = crewFailurePrefix + err.Error()
	}
	ec.Logf("Crew execution finished. Final result: %s", output)
	return output, err
}

// Close 关闭所有实现 io.Closer 的 Agent
func (c *Crew) Close() error {
	var errs []error
	for _, a := range c.agents {
		if closer, ok := a.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close agent %s: %w", a.Name(), err))
			}
		}
	}
	c.logger.Debug("crew closed")
	return errors.Join(errs...)
}

// =============================================================================
// 📦 Execution
// =============================================================================

// Execution 一次 Crew 运行
type Execution struct {
	task      *agent.Task
	ec        *agent.ExecutionContext
	process   ProcessType
	startedAt time.Time
	fut       *agent.Future
}

// ID 运行 ID，等于执行上下文的 RunID
func (e *Execution) ID() string { return e.ec.RunID() }

// Task 原任务
func (e *Execution) Task() *agent.Task { return e.task }

// Context 本次运行的执行上下文
func (e *Execution) Context() *agent.ExecutionContext { return e.ec }

// Process 使用的策略类型
func (e *Execution) Process() ProcessType { return e.process }

// StartedAt 开始时间
func (e *Execution) StartedAt() time.Time { return e.startedAt }

// Done 运行结束时关闭
func (e *Execution) Done() <-chan struct{} { return e.fut.Done() }

// Await 等待最终文本；ctx 先结束时返回 "Error during crew execution: ..."
func (e *Execution) Await(ctx context.Context) string {
	out, err := e.fut.Await(ctx)
	if err != nil && out == "" {
		return crewFailurePrefix + err.Error()
	}
	return out
}

// Result 非阻塞读取结果，运行未结束时 done 为 false
func (e *Execution) Result() (output string, done bool) {
	if !e.fut.IsDone() {
		return "", false
	}
	out, _ := e.fut.Await(context.Background())
	return out, true
}

// Err 运行失败的原因；运行中或成功时为 nil
func (e *Execution) Err() error {
	if !e.fut.IsDone() {
		return nil
	}
	_, err := e.fut.Await(context.Background())
	return err
}
