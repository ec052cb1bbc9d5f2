package crews

import "errors"

var (
	// ErrNoAgents 没有可用的 Agent
	ErrNoAgents = errors.New("no agents available")

	// ErrUnknownProcess 未知的编排策略
	ErrUnknownProcess = errors.New("unknown crew process")

	// ErrPlanParse 经理的计划无法解析
	ErrPlanParse = errors.New("failed to parse manager's plan")

	// ErrNilTask 任务为 nil
	ErrNilTask = errors.New("task is nil")
)

// 用户可见的失败文本
const (
	noAgentsOutput         = "Error: No agents available."
	sequentialFailedOutput = "Error: Process failed or produced no result."
	planParseOutputPrefix  = "Error: Failed to parse manager's plan. Manager's output: "
	agentNotFoundPrefix    = "Error: Agent not found - "
	hierarchicalFailPrefix = "Error: Hierarchical process failed. "
	consensualFailPrefix   = "Error: Consensual process failed. "
	crewFailurePrefix      = "Error during crew execution: "
)
