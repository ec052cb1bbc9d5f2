package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentcrew/llm/providers"
	"github.com/BaSui01/agentcrew/types"
	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	providerName = "anthropic"

	// DefaultModel 默认模型
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxTokens Messages API 要求显式的 max_tokens
	DefaultMaxTokens = 1024
)

// Config Anthropic 提供者配置
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	// MaxRetries SDK 内置重试次数，0 表示不重试
	MaxRetries int
}

// Provider 基于 anthropic-sdk-go 的 llm.Completer 实现
type Provider struct {
	client    sdk.Client
	model     sdk.Model
	maxTokens int64
	temp      float64
	logger    *zap.Logger
}

// New 创建 Anthropic 提供者
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client:    sdk.NewClient(opts...),
		model:     sdk.Model(cfg.Model),
		maxTokens: int64(cfg.MaxTokens),
		temp:      cfg.Temperature,
		logger:    logger.With(zap.String("provider", providerName)),
	}
}

// Name 提供者名称
func (p *Provider) Name() string { return providerName }

// Model 模型名称
func (p *Provider) Model() string { return string(p.model) }

// Complete 以单条用户消息调用 Messages API，拼接所有文本块
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	params := sdk.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if p.temp > 0 {
		params.Temperature = sdk.Float(p.temp)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.mapError(ctx, err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(sdk.TextBlock); ok {
			sb.WriteString(variant.Text)
		}
	}
	if sb.Len() == 0 {
		return "", types.NewError(types.ErrUpstreamError, "response contained no text blocks").
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	}
	return sb.String(), nil
}

func (p *Provider) mapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		p.logger.Warn("completion rejected", zap.Int("status", apiErr.StatusCode), zap.Error(err))
		return providers.MapHTTPError(apiErr.StatusCode, err.Error(), providerName).WithCause(err)
	}
	return providers.TransportError(err, providerName)
}
