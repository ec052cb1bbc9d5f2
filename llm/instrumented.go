package llm

import (
	"context"
	"time"

	"github.com/BaSui01/agentcrew/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Instrumented 为每次调用记录指标、span 与调试日志
type Instrumented struct {
	next      Completer
	provider  string
	model     string
	collector *metrics.Collector
	tracer    trace.Tracer
	logger    *zap.Logger
}

// InstrumentOption 可观测包装选项
type InstrumentOption func(*Instrumented)

// WithTracer 指定 tracer（默认使用全局 TracerProvider）
func WithTracer(tracer trace.Tracer) InstrumentOption {
	return func(i *Instrumented) { i.tracer = tracer }
}

// NewInstrumented 创建可观测包装，collector 可为 nil
func NewInstrumented(next Completer, provider, model string, collector *metrics.Collector, logger *zap.Logger, opts ...InstrumentOption) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Instrumented{
		next:      next,
		provider:  provider,
		model:     model,
		collector: collector,
		tracer:    otel.Tracer("github.com/BaSui01/agentcrew/llm"),
		logger:    logger.With(zap.String("component", "llm"), zap.String("provider", provider)),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Complete 实现 Completer
func (i *Instrumented) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, span := i.tracer.Start(ctx, "llm.Complete", trace.WithAttributes(
		attribute.String("llm.provider", i.provider),
		attribute.String("llm.model", i.model),
		attribute.Int("llm.prompt_length", len(prompt)),
	))
	defer span.End()

	start := time.Now()
	out, err := i.next.Complete(ctx, prompt)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.logger.Warn("completion failed", zap.Duration("duration", duration), zap.Error(err))
	} else {
		span.SetAttributes(attribute.Int("llm.response_length", len(out)))
		i.logger.Debug("completion finished", zap.Duration("duration", duration))
	}
	i.collector.RecordLLMRequest(i.provider, i.model, status, duration)

	return out, err
}
