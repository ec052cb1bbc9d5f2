package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestProperty_ToolCallDetectedInsideProse 任意不含花括号的说明文字包裹
// （可带代码围栏）的工具调用都能被识别，且名称与参数不变。
func TestProperty_ToolCallDetectedInsideProse(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		toolName := rapid.StringMatching(`[a-z][a-z_]{0,11}`).Draw(rt, "toolName")
		params := rapid.MapOf(
			rapid.StringMatching(`[a-z]{1,8}`),
			rapid.StringMatching(`[A-Za-z0-9 {}"]{0,16}`),
		).Draw(rt, "params")
		before := rapid.StringMatching(`[A-Za-z .,!?\n]{0,40}`).Draw(rt, "before")
		after := rapid.StringMatching(`[A-Za-z .,!?\n]{0,40}`).Draw(rt, "after")
		fenced := rapid.Bool().Draw(rt, "fenced")

		payload, err := json.Marshal(map[string]any{
			"tool_name":       toolName,
			"tool_parameters": params,
		})
		require.NoError(rt, err)

		body := string(payload)
		if fenced {
			body = "```json\n" + body + "\n```"
		}
		response := before + body + after

		call, ok := ExtractToolCall(response)
		require.True(rt, ok, "response: %q", response)
		require.Equal(rt, toolName, call.ToolName)

		got := make(map[string]string, len(call.Parameters))
		for k, v := range call.Parameters {
			s, isString := v.(string)
			require.True(rt, isString)
			got[k] = s
		}
		require.Equal(rt, params, got)
	})
}

// TestProperty_NoBracesNoToolCall 不含 '{' 的响应永远是最终答案
func TestProperty_NoBracesNoToolCall(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		response := rapid.String().Draw(rt, "response")
		response = strings.ReplaceAll(response, "{", "")

		_, ok := ExtractToolCall(response)
		require.False(rt, ok)
	})
}
