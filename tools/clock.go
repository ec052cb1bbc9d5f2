package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/agentcrew/types"
)

// ClockToolName clock 工具名称
const ClockToolName = "clock"

// ClockTool 返回当前时间（RFC 3339）
type ClockTool struct {
	now func() time.Time
}

var _ types.Tool = (*ClockTool)(nil)

// NewClockTool 创建 clock 工具，now 为 nil 时使用 time.Now
func NewClockTool(now func() time.Time) *ClockTool {
	if now == nil {
		now = time.Now
	}
	return &ClockTool{now: now}
}

func (c *ClockTool) Name() string { return ClockToolName }

func (c *ClockTool) Description() string {
	return "Returns the current date and time in RFC 3339 format."
}

func (c *ClockTool) ParameterSchema() map[string]string {
	return map[string]string{"timezone": "Optional IANA time zone name, e.g. Europe/Berlin. Defaults to UTC."}
}

func (c *ClockTool) Use(_ context.Context, params map[string]any) (string, error) {
	loc := time.UTC
	if raw, ok := params["timezone"]; ok && raw != nil {
		name, ok := raw.(string)
		if !ok {
			return "", fmt.Errorf("%w: 'timezone' must be a string", ErrInvalidParameters)
		}
		if name != "" {
			l, err := time.LoadLocation(name)
			if err != nil {
				return "", fmt.Errorf("%w: unknown timezone %q", ErrInvalidParameters, name)
			}
			loc = l
		}
	}
	return c.now().In(loc).Format(time.RFC3339), nil
}
