package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// matches 大小写不敏感的子串匹配，同时比较键和值；空查询匹配全部
func matches(query, key string, value any) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(key), q) {
		return true
	}
	return strings.Contains(strings.ToLower(stringify(value)), q)
}

// stringify 值的文本形式，用于匹配
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// encodeValue 将值编码为 JSON，供远程后端存储
//
// 不转义 HTML 字符，使存储的文本可直接做子串匹配。
func encodeValue(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeValue(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode memory value: %w", err)
	}
	return v, nil
}
