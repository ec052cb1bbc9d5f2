package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/BaSui01/agentcrew/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 types.Error
// 这是所有提供者使用的通用错误映射函数
func MapHTTPError(status int, msg string, provider string) *types.Error {
	code, retryable := types.ErrorCodeForHTTPStatus(status)

	// 400 中的配额/信用关键字
	if status == http.StatusBadRequest {
		msgLower := strings.ToLower(msg)
		if strings.Contains(msgLower, "quota") || strings.Contains(msgLower, "credit") {
			code = types.ErrQuotaExceeded
		}
	}

	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}

// TransportError 网络层失败（连接、超时、解码）映射为可重试的上游错误
func TransportError(err error, provider string) *types.Error {
	return types.NewError(types.ErrUpstreamError, "upstream request failed").
		WithCause(err).
		WithHTTPStatus(http.StatusBadGateway).
		WithRetryable(true).
		WithProvider(provider)
}

// ReadErrorMessage 读取响应体中的错误消息
// 尝试解析 JSON 错误响应，失败则回退到原始文本
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}

	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}

	// 回退到原始文本
	return strings.TrimSpace(string(data))
}
