package api

import (
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/crews"
)

// =============================================================================
// 运行
// =============================================================================

// ExecutionRequest 提交任务请求
type ExecutionRequest struct {
	// 任务描述，必填
	Description string `json:"description" example:"Write a release note for v1.2"`
	// 任务输入
	Input map[string]any `json:"input,omitempty"`
	// 期望输出
	ExpectedOutput string `json:"expected_output,omitempty" example:"three bullet points"`
	// 是否需要人工输入
	RequiresHumanInput bool `json:"requires_human_input,omitempty"`
	// 预先提供的人工输入，提供时不会进入等待
	HumanInput *string `json:"human_input,omitempty"`
	// 为 true 时阻塞到运行结束
	Wait bool `json:"wait,omitempty"`
}

// ExecutionResponse 一次运行的状态
type ExecutionResponse struct {
	ID        string             `json:"id"`
	Crew      string             `json:"crew"`
	Process   crews.ProcessType  `json:"process"`
	Task      agent.TaskSnapshot `json:"task"`
	Done      bool               `json:"done"`
	Output    string             `json:"output,omitempty"`
	Error     string             `json:"error,omitempty"`
	StartedAt time.Time          `json:"started_at"`
}

// =============================================================================
// 人工输入
// =============================================================================

// HumanInputRequest 人工输入提交请求
type HumanInputRequest struct {
	Input string `json:"input" example:"use postgres"`
}
