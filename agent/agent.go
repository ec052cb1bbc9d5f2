package agent

import (
	"context"
	"time"

	"github.com/BaSui01/agentcrew/types"
)

// Agent 编排策略消费的 Agent 能力契约
type Agent interface {
	Name() string
	Role() string
	Tools() []types.Tool
	Memory() types.Memory
	// PerformTask 立即返回 Future，不阻塞调用方
	PerformTask(ctx context.Context, task *Task, ec *ExecutionContext) *Future
}

// HumanInputNotifier 接收人工输入等待的开始与结束
type HumanInputNotifier interface {
	HumanInputRequested(runID string, task *Task, agentName string)
	HumanInputSettled(task *Task)
}

// EventType 事件类型
type EventType string

const (
	EventLog                 EventType = "log"
	EventTaskStatus          EventType = "task_status"
	EventHumanInputRequested EventType = "human_input_requested"
)

// Event 运行事件
type Event struct {
	Type      EventType  `json:"type"`
	RunID     string     `json:"run_id"`
	TaskID    string     `json:"task_id,omitempty"`
	Agent     string     `json:"agent,omitempty"`
	Status    TaskStatus `json:"status,omitempty"`
	Message   string     `json:"message,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// EventSink 事件接收方，Publish 不得长时间阻塞
type EventSink interface {
	Publish(Event)
}
