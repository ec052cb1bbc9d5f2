// =============================================================================
// AgentCrew OpenAI-Compatible Provider
// =============================================================================
// Single-turn chat completions against any OpenAI-compatible endpoint.
// OpenAI and Groq are presets; other vendors only differ by base URL,
// default model and headers.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentcrew/internal/tlsutil"
	"github.com/BaSui01/agentcrew/llm/providers"
	"github.com/BaSui01/agentcrew/types"
	"go.uber.org/zap"
)

// Config holds the configuration for an OpenAI-compatible provider.
type Config struct {
	// ProviderName is the unique identifier for this provider (e.g., "openai", "groq").
	ProviderName string

	// APIKey is the authentication key for the provider's API.
	APIKey string

	// BaseURL is the base URL for the provider's API (e.g., "https://api.openai.com").
	BaseURL string

	// Model is the model name sent with every request.
	Model string

	// MaxTokens caps the completion length. Zero leaves it to the server.
	MaxTokens int

	// Temperature is the sampling temperature. Zero leaves it to the server.
	Temperature float32

	// Timeout is the HTTP client timeout. Defaults to 60s if zero.
	Timeout time.Duration

	// EndpointPath is the chat completions endpoint path. Defaults to "/v1/chat/completions".
	EndpointPath string

	// BuildHeaders is an optional function to set custom headers on each request.
	// If nil, the default "Authorization: Bearer <apiKey>" header is used.
	BuildHeaders func(req *http.Request, apiKey string)
}

// Preset base URLs and default models.
const (
	OpenAIBaseURL      = "https://api.openai.com"
	OpenAIDefaultModel = "gpt-4o-mini"
	GroqBaseURL        = "https://api.groq.com/openai"
	GroqDefaultModel   = "llama-3.3-70b-versatile"
)

// OpenAIConfig returns the preset for api.openai.com.
func OpenAIConfig(apiKey, model string) Config {
	if model == "" {
		model = OpenAIDefaultModel
	}
	return Config{ProviderName: "openai", APIKey: apiKey, BaseURL: OpenAIBaseURL, Model: model}
}

// GroqConfig returns the preset for Groq's OpenAI-compatible endpoint.
func GroqConfig(apiKey, model string) Config {
	if model == "" {
		model = GroqDefaultModel
	}
	return Config{ProviderName: "groq", APIKey: apiKey, BaseURL: GroqBaseURL, Model: model}
}

// Provider implements llm.Completer over the chat completions API.
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

// New creates a new OpenAI-compatible provider with the given config.
func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.HTTPClient(timeout),
		Logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.Cfg.ProviderName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		FinishReason string      `json:"finish_reason"`
		Message      chatMessage `json:"message"`
	} `json:"choices"`
}

// buildHeaders applies headers to the HTTP request.
func (p *Provider) buildHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if p.Cfg.BuildHeaders != nil {
		p.Cfg.BuildHeaders(req, p.Cfg.APIKey)
		return
	}
	// Default: Bearer token auth
	req.Header.Set("Authorization", "Bearer "+p.Cfg.APIKey)
}

// endpoint builds the full URL for a given path.
func (p *Provider) endpoint(path string) string {
	return fmt.Sprintf("%s%s", strings.TrimRight(p.Cfg.BaseURL, "/"), path)
}

// Complete sends the prompt as a single user message and returns the first choice.
func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	body := chatRequest{
		Model:       p.Cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.Cfg.MaxTokens,
		Temperature: p.Cfg.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.Cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", providers.TransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := providers.ReadErrorMessage(resp.Body)
		p.Logger.Warn("completion rejected", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return "", providers.MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var oaResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return "", providers.TransportError(fmt.Errorf("decode response: %w", err), p.Name())
	}
	if len(oaResp.Choices) == 0 {
		return "", types.NewError(types.ErrUpstreamError, "response contained no choices").
			WithHTTPStatus(http.StatusBadGateway).
			WithProvider(p.Name())
	}

	return oaResp.Choices[0].Message.Content, nil
}
