package openaicompat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// New() constructor
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	p := New(Config{ProviderName: "test"}, nil)

	require.NotNil(t, p)
	assert.Equal(t, "/v1/chat/completions", p.Cfg.EndpointPath)
	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 60*time.Second, p.Client.Timeout)
	assert.NotNil(t, p.Logger)
}

func TestPresets(t *testing.T) {
	openai := OpenAIConfig("sk-1", "")
	assert.Equal(t, "openai", openai.ProviderName)
	assert.Equal(t, OpenAIBaseURL, openai.BaseURL)
	assert.Equal(t, OpenAIDefaultModel, openai.Model)

	groq := GroqConfig("gsk-1", "mixtral")
	assert.Equal(t, "groq", groq.ProviderName)
	assert.Equal(t, GroqBaseURL, groq.BaseURL)
	assert.Equal(t, "mixtral", groq.Model)
}

// ---------------------------------------------------------------------------
// Complete()
// ---------------------------------------------------------------------------

func TestComplete_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-test","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	p := New(Config{
		ProviderName: "openai",
		APIKey:       "sk-test",
		BaseURL:      srv.URL + "/",
		Model:        "gpt-test",
		MaxTokens:    128,
	}, zap.NewNop())

	out, err := p.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", out)

	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 128, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "say hello", got.Messages[0].Content)
}

func TestComplete_CustomHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := New(Config{
		ProviderName: "custom",
		APIKey:       "key-1",
		BaseURL:      srv.URL,
		BuildHeaders: func(req *http.Request, apiKey string) {
			req.Header.Set("X-Api-Key", apiKey)
		},
	}, nil)

	out, err := p.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestComplete_HTTPErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      types.ErrorCode
		wantRetryable bool
	}{
		{"unauthorized", 401, `{"error":{"message":"invalid api key","type":"auth"}}`, types.ErrAuthentication, false},
		{"rate limited", 429, `{"error":{"message":"slow down"}}`, types.ErrRateLimit, true},
		{"server error", 500, `boom`, types.ErrUpstreamError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := New(Config{ProviderName: "openai", BaseURL: srv.URL}, nil)
			_, err := p.Complete(context.Background(), "p")
			require.Error(t, err)

			typed, ok := types.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, typed.Code)
			assert.Equal(t, tt.wantRetryable, typed.Retryable)
			assert.Equal(t, "openai", typed.Provider)
		})
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := New(Config{ProviderName: "openai", BaseURL: srv.URL}, nil)
	_, err := p.Complete(context.Background(), "p")
	assert.True(t, types.IsErrorCode(err, types.ErrUpstreamError))
}

func TestComplete_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	p := New(Config{ProviderName: "openai", BaseURL: srv.URL}, nil)
	_, err := p.Complete(context.Background(), "p")
	assert.True(t, types.IsRetryable(err))
}

func TestComplete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := New(Config{ProviderName: "openai", BaseURL: srv.URL}, nil)
	_, err := p.Complete(ctx, "p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
