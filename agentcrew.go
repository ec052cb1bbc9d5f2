// Package agentcrew 按配置组装完整的多 Agent 编排实例。
//
// 用法：
//
//	cfg, err := config.NewLoader().WithConfigPath("crew.yaml").WithEnvPrefix("AGENTCREW").Load()
//	app, err := agentcrew.NewFromConfig(cfg, logger)
//	defer app.Close()
//	out := app.Crew.Run(ctx, agent.NewTask("Write a release note"))
//
// NewFromConfig 依次创建模型后端、工具、每个 Agent 的记忆、推理 Agent、
// 人工输入 Broker、事件总线（可选 NATS 发布与远端人工输入）以及 Crew。
package agentcrew

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/crews"
	"github.com/BaSui01/agentcrew/agent/hitl"
	"github.com/BaSui01/agentcrew/agent/memory"
	"github.com/BaSui01/agentcrew/config"
	"github.com/BaSui01/agentcrew/internal/eventbus"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/llm/factory"
	"github.com/BaSui01/agentcrew/llm/tokenizer"
	"github.com/BaSui01/agentcrew/tools"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// setupTimeout 连接外部记忆后端的超时
const setupTimeout = 30 * time.Second

// Option 组装选项
type Option func(*options)

type options struct {
	completer  llm.Completer
	registry   *tools.Registry
	registerer prometheus.Registerer
	tracer     trace.Tracer
	store      hitl.RequestStore
	sinks      []agent.EventSink
}

// WithCompleter 使用给定的模型后端，跳过 llm 配置
func WithCompleter(c llm.Completer) Option {
	return func(o *options) { o.completer = c }
}

// WithToolRegistry 使用自定义工具注册表，默认包含 echo 与 clock
func WithToolRegistry(r *tools.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPrometheusRegisterer 指标注册到给定 registerer，默认新建独立 registry
func WithPrometheusRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithTracer 指定 crew、agent 与模型调用的 tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRequestStore 人工输入请求存储，默认内存存储
func WithRequestStore(s hitl.RequestStore) Option {
	return func(o *options) { o.store = s }
}

// WithEventSinks 额外的事件接收方
func WithEventSinks(sinks ...agent.EventSink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// App 组装完成的编排实例
type App struct {
	Config  *config.Config
	Crew    *crews.Crew
	Agents  []*agent.ReasoningAgent
	Broker  *hitl.Broker
	Bus     *eventbus.Bus
	Metrics *metrics.Collector

	gatherer  prometheus.Gatherer
	nats      *nats.Conn
	responder *eventbus.NATSHumanInputResponder
	closers   []namedCloser
	logger    *zap.Logger
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// NewFromConfig 按配置组装编排实例；失败时已创建的资源会被释放
func NewFromConfig(cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	app := &App{Config: cfg, logger: logger.With(zap.String("component", "agentcrew"))}
	if err := app.build(cfg, logger, o); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.logger.Info("crew assembled",
		zap.String("crew", cfg.Crew.Name),
		zap.String("process", cfg.Crew.Process),
		zap.Int("agents", len(app.Agents)),
		zap.Bool("nats", app.nats != nil),
	)
	return app, nil
}

func (a *App) build(cfg *config.Config, logger *zap.Logger, o *options) error {
	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	// 指标
	if cfg.Metrics.Enabled {
		reg := o.registerer
		if reg == nil {
			r := prometheus.NewRegistry()
			r.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			reg, a.gatherer = r, r
		} else if g, ok := reg.(prometheus.Gatherer); ok {
			a.gatherer = g
		}
		a.Metrics = metrics.NewCollector(cfg.Metrics.Namespace, reg, logger)
	}

	// 模型后端
	backend := o.completer
	if backend == nil {
		fopts := []factory.Option{factory.WithMetrics(a.Metrics)}
		if o.tracer != nil {
			fopts = append(fopts, factory.WithTracer(o.tracer))
		}
		b, err := factory.NewCompleter(cfg.LLM, logger, fopts...)
		if err != nil {
			return fmt.Errorf("create llm backend: %w", err)
		}
		a.track("llm backend", b)
		backend = b
	}

	// Agent
	registry := o.registry
	if registry == nil {
		registry = tools.NewDefaultRegistry(logger)
	}
	members := make([]agent.Agent, 0, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		ra, err := a.buildAgent(ctx, cfg, ac, backend, registry, logger, o)
		if err != nil {
			return fmt.Errorf("agent %s: %w", ac.Name, err)
		}
		a.Agents = append(a.Agents, ra)
		members = append(members, ra)
	}

	// 事件与人工输入
	nc, err := eventbus.Connect(cfg.Events, logger)
	if err != nil {
		return err
	}
	a.nats = nc

	sinks := append([]agent.EventSink(nil), o.sinks...)
	if nc != nil {
		sinks = append(sinks, eventbus.NewNATSPublisher(nc, cfg.Events.SubjectPrefix, logger))
	}
	a.Bus = eventbus.NewBus(logger, sinks...)
	a.Broker = hitl.NewBroker(o.store, logger)

	if nc != nil {
		a.responder = eventbus.NewNATSHumanInputResponder(nc, cfg.Events.SubjectPrefix, a.Broker, logger)
		if err := a.responder.Start(); err != nil {
			return err
		}
	}

	// Crew
	copts := []crews.Option{
		crews.WithHumanInputNotifier(a.Broker),
		crews.WithEventSink(a.Bus),
		crews.WithMetrics(a.Metrics),
	}
	if o.tracer != nil {
		copts = append(copts, crews.WithTracer(o.tracer))
	}
	crew, err := crews.NewCrew(crews.Config{
		Name:       cfg.Crew.Name,
		Process:    crews.ProcessType(cfg.Crew.Process),
		Sequential: crews.SequentialOptions{PerHopCallbacks: cfg.Crew.PerHopCallbacks},
	}, members, logger, copts...)
	if err != nil {
		return err
	}
	a.Crew = crew
	return nil
}

func (a *App) buildAgent(ctx context.Context, cfg *config.Config, ac config.AgentConfig, backend llm.Completer, registry *tools.Registry, logger *zap.Logger, o *options) (*agent.ReasoningAgent, error) {
	agentTools, err := registry.Build(ac.Tools...)
	if err != nil {
		return nil, err
	}

	mem, err := memory.New(ctx, cfg.Memory, ac.Name, logger, memory.WithMetrics(a.Metrics))
	if err != nil {
		return nil, err
	}
	if c, ok := mem.(io.Closer); ok {
		a.track("memory "+ac.Name, c)
	}

	ropts := []agent.ReasoningOption{
		agent.WithTools(agentTools...),
		agent.WithMemory(mem),
		agent.WithMetrics(a.Metrics),
	}
	if o.tracer != nil {
		ropts = append(ropts, agent.WithTracer(o.tracer))
	}
	if ac.PromptTokenBudget > 0 {
		model := cfg.LLM.Model
		if m, ok := backend.(interface{ Model() string }); ok {
			model = m.Model()
		}
		ropts = append(ropts, agent.WithTokenCounter(tokenizer.NewTiktoken(model)))
	}
	ra, err := agent.NewReasoningAgent(agent.ReasoningConfig{
		Name:              ac.Name,
		Role:              ac.Role,
		MaxIterations:     ac.MaxIterations,
		PoolSize:          ac.PoolSize,
		QueueSize:         ac.QueueSize,
		MemoryTopK:        ac.MemoryTopK,
		HumanInputTimeout: ac.HumanInputTimeout,
		PromptTokenBudget: ac.PromptTokenBudget,
	}, backend, logger, ropts...)
	if err != nil {
		return nil, err
	}
	return ra, nil
}

func (a *App) track(name string, c io.Closer) {
	a.closers = append(a.closers, namedCloser{name: name, closer: c})
}

// Gatherer /metrics 使用的指标来源，指标未启用时为 nil
func (a *App) Gatherer() prometheus.Gatherer { return a.gatherer }

// NATS 事件连接，未配置时为 nil
func (a *App) NATS() *nats.Conn { return a.nats }

// Close 依次关闭 crew（各 Agent 工作池）、远端人工输入订阅、NATS 连接、
// 事件总线、记忆与模型后端
func (a *App) Close() error {
	var errs []error
	if a.Crew != nil {
		if err := a.Crew.Close(); err != nil {
			errs = append(errs, err)
		}
	} else {
		for _, ra := range a.Agents {
			_ = ra.Close()
		}
	}
	if a.responder != nil {
		if err := a.responder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close human input responder: %w", err))
		}
	}
	if a.nats != nil {
		if err := a.nats.Drain(); err != nil {
			a.nats.Close()
		}
	}
	if a.Bus != nil {
		a.Bus.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		nc := a.closers[i]
		if err := nc.closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", nc.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
