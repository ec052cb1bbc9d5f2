package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentcrew/internal/tlsutil"
	"github.com/BaSui01/agentcrew/llm/providers"
	"github.com/BaSui01/agentcrew/types"
	"go.uber.org/zap"
)

const (
	providerName = "gemini"

	// DefaultBaseURL Gemini REST API 地址
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel 默认模型
	DefaultModel = "gemini-2.5-flash"
)

// Config Gemini 提供者配置
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Provider 基于 generateContent 的 llm.Completer 实现
type Provider struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New 创建 Gemini 提供者
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return &Provider{
		cfg:    cfg,
		client: tlsutil.HTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", providerName)),
	}
}

// Name 提供者名称
func (p *Provider) Name() string { return providerName }

// Model 模型名称
func (p *Provider) Model() string { return p.cfg.Model }

// Gemini 消息结构
type content struct {
	Role  string `json:"role,omitempty"` // user, model
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
	Index        int     `json:"index"`
}

type generateResponse struct {
	Candidates   []candidate `json:"candidates"`
	ModelVersion string      `json:"modelVersion,omitempty"`
	ResponseID   string      `json:"responseId,omitempty"`
}

func (p *Provider) buildHeaders(req *http.Request) {
	// Gemini 使用 x-goog-api-key 认证
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

func (p *Provider) endpoint() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent", strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)
}

// Complete 以单条用户消息调用 generateContent，拼接首个候选的文本分片
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	body := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}
	if p.cfg.MaxTokens > 0 || p.cfg.Temperature > 0 {
		body.GenerationConfig = &generationConfig{
			Temperature:     p.cfg.Temperature,
			MaxOutputTokens: p.cfg.MaxTokens,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", providers.TransportError(err, providerName)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		p.logger.Warn("completion rejected", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return "", providers.MapHTTPError(resp.StatusCode, msg, providerName)
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", providers.TransportError(fmt.Errorf("decode response: %w", err), providerName)
	}

	var sb strings.Builder
	if len(gr.Candidates) > 0 {
		for _, pt := range gr.Candidates[0].Content.Parts {
			sb.WriteString(pt.Text)
		}
	}
	if sb.Len() == 0 {
		return "", types.NewError(types.ErrUpstreamError, "response contained no text candidates").
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(providerName)
	}
	return sb.String(), nil
}

// readErrorMessage Gemini 错误体为 {"error":{"code","message","status"}}
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Status != "" {
			return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
