package crews

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentcrew/agent"
)

// ProcessType 编排策略类型
type ProcessType string

const (
	ProcessSequential   ProcessType = "sequential"
	ProcessHierarchical ProcessType = "hierarchical"
	ProcessConsensual   ProcessType = "consensual"
)

// Valid 是否为已知策略
func (p ProcessType) Valid() bool {
	switch p {
	case ProcessSequential, ProcessHierarchical, ProcessConsensual:
		return true
	}
	return false
}

// Strategy 编排策略
//
// Execute 总是返回最终文本；err 非 nil 表示运行失败，此时文本为以
// "Error: " 开头的诊断信息。实现负责让原任务进入终态。
type Strategy interface {
	Process() ProcessType
	Execute(ctx context.Context, task *agent.Task, agents []agent.Agent, ec *agent.ExecutionContext) (string, error)
}

// NewStrategy 按类型创建策略
func NewStrategy(process ProcessType, seq SequentialOptions) (Strategy, error) {
	switch process {
	case ProcessSequential:
		return &SequentialStrategy{Options: seq}, nil
	case ProcessHierarchical:
		return &HierarchicalStrategy{}, nil
	case ProcessConsensual:
		return &ConsensualStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcess, process)
	}
}

// =============================================================================
// 🔧 策略共用的辅助函数
// =============================================================================

// perform 调用 Agent 并等待结果
func perform(ctx context.Context, a agent.Agent, task *agent.Task, ec *agent.ExecutionContext) (string, error) {
	task.AssignTo(a.Name())
	f := a.PerformTask(ctx, task, ec)
	if f == nil {
		return "", fmt.Errorf("agent %s returned no result", a.Name())
	}
	return f.Await(ctx)
}

// failureText 失败的可读文本，Agent 已给出 "Error" 开头的输出时直接沿用
func failureText(output string, err error) string {
	if strings.HasPrefix(output, "Error") {
		return output
	}
	return "Error: " + err.Error()
}

// diagnostic 接在策略失败前缀之后的说明，优先沿用 Agent 自己的诊断
func diagnostic(output string, err error) string {
	if rest, ok := strings.CutPrefix(output, "Error: "); ok && rest != "" {
		return rest
	}
	if strings.HasPrefix(output, "Error") {
		return output
	}
	return err.Error()
}

// startOriginal 原任务进入 IN_PROGRESS
func startOriginal(task *agent.Task) error {
	switch status := task.Status(); {
	case status.IsTerminal():
		return fmt.Errorf("%w: task %s is %s", agent.ErrTaskTerminal, task.ID(), status)
	case status == agent.StatusPending:
		return task.Transition(agent.StatusInProgress)
	}
	return nil
}

// failNoAgents 没有 Agent 时直接让原任务失败
func failNoAgents(task *agent.Task, ec *agent.ExecutionContext, process ProcessType) (string, error) {
	ec.Logf("%s process: no agents available, failing task %s", process, task.ID())
	task.Complete(agent.TaskResult{Status: agent.StatusFailed, Error: "No agents available."})
	ec.RecordStatus(task)
	return noAgentsOutput, ErrNoAgents
}

// delegateDirectly 单个 Agent 直接处理原任务
func delegateDirectly(ctx context.Context, a agent.Agent, task *agent.Task, ec *agent.ExecutionContext, process ProcessType) (string, error) {
	ec.Logf("%s process: only one agent (%s) available, delegating task %s directly", process, a.Name(), task.ID())
	return perform(ctx, a, task, ec)
}

// completeOriginal 以综合任务的结果收尾原任务
//
// 综合任务的回调通常已经完成原任务，这里只兜底处理未回调的 Agent 实现
// 与 ctx 提前结束的情况。
func completeOriginal(task *agent.Task, ec *agent.ExecutionContext, output string, err error, failPrefix string) (string, error) {
	if err != nil {
		if task.Complete(agent.Failed(err)) {
			ec.RecordStatus(task)
		}
		return failPrefix + diagnostic(output, err), err
	}
	if task.Complete(agent.Succeeded(output)) {
		ec.RecordStatus(task)
	}
	return output, nil
}
