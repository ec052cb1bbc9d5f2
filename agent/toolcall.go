package agent

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/agentcrew/types"
)

// ExtractToolCall 从模型响应中提取工具调用
//
// 依次尝试响应中每个 '{' 起始的括号平衡 JSON 对象（感知字符串与转义），
// 返回第一个同时包含非空字符串 tool_name 与对象 tool_parameters 的对象。
// 代码围栏与前后说明文字会被自然跳过。
func ExtractToolCall(response string) (types.ToolCall, bool) {
	start := strings.IndexByte(response, '{')
	for start >= 0 {
		if end, ok := matchBrace(response, start); ok {
			if call, ok := decodeToolCall(response[start : end+1]); ok {
				return call, true
			}
		}
		next := strings.IndexByte(response[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return types.ToolCall{}, false
}

// matchBrace 返回与 s[start] 处 '{' 匹配的 '}' 下标
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

func decodeToolCall(candidate string) (types.ToolCall, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return types.ToolCall{}, false
	}

	nameRaw, ok := raw["tool_name"]
	if !ok {
		return types.ToolCall{}, false
	}
	paramsRaw, ok := raw["tool_parameters"]
	if !ok {
		return types.ToolCall{}, false
	}

	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil || strings.TrimSpace(name) == "" {
		return types.ToolCall{}, false
	}
	var params map[string]any
	if err := json.Unmarshal(paramsRaw, &params); err != nil || params == nil {
		return types.ToolCall{}, false
	}

	return types.ToolCall{ToolName: name, Parameters: params}, true
}
