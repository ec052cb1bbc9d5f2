// Package factory 根据配置组装模型后端。
//
// 独立于 llm 包，避免 llm 与具体 Provider 之间的循环依赖。
package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentcrew/config"
	"github.com/BaSui01/agentcrew/internal/cache"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/llm/providers/anthropic"
	"github.com/BaSui01/agentcrew/llm/providers/gemini"
	"github.com/BaSui01/agentcrew/llm/providers/openaicompat"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option 工厂选项
type Option func(*options)

type options struct {
	collector *metrics.Collector
	tracer    trace.Tracer
	store     *cache.Manager
}

// WithMetrics 记录 LLM 请求与缓存命中指标
func WithMetrics(c *metrics.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithTracer 指定 LLM 调用使用的 tracer
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithCacheManager 复用已有缓存管理器，生命周期由调用方负责
func WithCacheManager(m *cache.Manager) Option {
	return func(o *options) { o.store = m }
}

// Backend 组装完成的模型后端
type Backend struct {
	llm.Completer

	provider string
	model    string
	store    *cache.Manager
	ownStore bool
}

// Provider 规范化后的 Provider 名称
func (b *Backend) Provider() string { return b.provider }

// Model 实际使用的模型
func (b *Backend) Model() string { return b.model }

// Close 释放工厂创建的缓存
func (b *Backend) Close() error {
	if b.store != nil && b.ownStore {
		return b.store.Close()
	}
	return nil
}

// NewCompleter 创建模型后端
//
// 包装顺序：Instrumented(Cached(RateLimited(provider)))。缓存命中不消耗限流令牌，
// 所有调用（含命中）都计入指标。
func NewCompleter(cfg config.LLMConfig, logger *zap.Logger, opts ...Option) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	apiKey := config.ResolveAPIKey(name, cfg.APIKey)

	var (
		base  llm.Completer
		model string
	)
	switch name {
	case "openai", "groq":
		pc := openaicompat.OpenAIConfig(apiKey, cfg.Model)
		if name == "groq" {
			pc = openaicompat.GroqConfig(apiKey, cfg.Model)
		}
		if cfg.BaseURL != "" {
			pc.BaseURL = cfg.BaseURL
		}
		pc.MaxTokens = cfg.MaxTokens
		pc.Temperature = float32(cfg.Temperature)
		pc.Timeout = cfg.Timeout
		base = openaicompat.New(pc, logger)
		model = pc.Model
	case "anthropic", "claude":
		p := anthropic.New(anthropic.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
			MaxRetries:  cfg.MaxRetries,
		}, logger)
		name = "anthropic"
		base = p
		model = p.Model()
	case "gemini":
		p := gemini.New(gemini.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
			Timeout:     cfg.Timeout,
		}, logger)
		base = p
		model = p.Model()
	case "echo", "":
		name = "echo"
		base = llm.EchoCompleter{}
		model = "echo"
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if name != "echo" && apiKey == "" {
		logger.Warn("llm api key is empty", zap.String("provider", name))
	}

	b := &Backend{provider: name, model: model}
	completer := base

	if cfg.RateLimitRPS > 0 {
		completer = llm.NewRateLimited(completer, cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	if cfg.Cache.Enabled {
		store := o.store
		if store == nil {
			cc := cache.DefaultConfig()
			cc.Addr = cfg.Cache.RedisAddr
			if cfg.Cache.LocalMaxCost > 0 {
				cc.LocalMaxCost = cfg.Cache.LocalMaxCost
			}
			if cfg.Cache.TTL > 0 {
				cc.DefaultTTL = cfg.Cache.TTL
			}
			var err error
			store, err = cache.NewManager(cc, logger)
			if err != nil {
				return nil, fmt.Errorf("create completion cache: %w", err)
			}
			b.ownStore = true
		}
		b.store = store
		completer = llm.NewCached(completer, store, name+"/"+model, cfg.Cache.TTL, o.collector, logger)
	}

	var instOpts []llm.InstrumentOption
	if o.tracer != nil {
		instOpts = append(instOpts, llm.WithTracer(o.tracer))
	}
	b.Completer = llm.NewInstrumented(completer, name, model, o.collector, logger, instOpts...)

	logger.Info("llm backend ready",
		zap.String("provider", name),
		zap.String("model", model),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Float64("rate_limit_rps", cfg.RateLimitRPS),
	)
	return b, nil
}

// Ping 对后端发起一次最小调用，用于健康检查
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.Complete(ctx, llm.DescriptionLinePrefix+" ping")
	return err
}
