package agent

import "errors"

var (
	// ErrMaxIterations 推理循环超过迭代上限
	ErrMaxIterations = errors.New("agent reached maximum iterations")

	// ErrTaskTerminal 任务已处于终态，不可再次执行
	ErrTaskTerminal = errors.New("task already in terminal state")

	// ErrNotAwaitingHumanInput 任务当前未等待人工输入
	ErrNotAwaitingHumanInput = errors.New("task is not awaiting human input")

	// ErrInvalidTransition 非法状态转换
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrHumanInputTimeout 等待人工输入超时
	ErrHumanInputTimeout = errors.New("timed out waiting for human input")

	// ErrBackendNotSet 未配置模型后端
	ErrBackendNotSet = errors.New("model backend not set")

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errors.New("invalid agent config")
)
