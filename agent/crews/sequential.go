package crews

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/google/uuid"
)

// SequentialOptions 顺序策略选项
type SequentialOptions struct {
	// PerHopCallbacks 每一跳成功后都以 COMPLETED 结果触发原任务回调；
	// 默认只在链路结束时触发一次
	PerHopCallbacks bool
}

// SequentialStrategy 顺序交接策略
//
// 第 i 个 Agent 的任务描述是第 i-1 个 Agent 的输出，输入为当时共享内存的
// 快照；第一跳沿用原任务的描述、输入、期望输出与人工输入字段。
// 每一跳的输入与输出记录在任务内存 "{描述}_{uuid}" 下。
type SequentialStrategy struct {
	Options SequentialOptions
}

// Process 策略类型
func (s *SequentialStrategy) Process() ProcessType { return ProcessSequential }

// Execute 执行顺序链路
func (s *SequentialStrategy) Execute(ctx context.Context, task *agent.Task, agents []agent.Agent, ec *agent.ExecutionContext) (string, error) {
	if len(agents) == 0 {
		return failNoAgents(task, ec, ProcessSequential)
	}

	runKey := task.Description() + "_" + uuid.NewString()
	ec.Logf("Sequential process: starting task %s with run key %s", task.Description(), runKey)

	if err := startOriginal(task); err != nil {
		ec.Logf("Sequential process: cannot start task %s: %v", task.ID(), err)
		return sequentialFailedOutput, err
	}
	ec.RecordStatus(task)

	current := task.Derive()
	var output string
	for i, a := range agents {
		if i > 0 {
			current = agent.NewTask(output,
				agent.WithInput(ec.SharedSnapshot()),
				agent.WithExpectedOutput(task.ExpectedOutput()),
			)
		}

		ec.Logf("Sequential process: agent %s starting task: %s", a.Name(), current.Description())
		ec.SetTaskData(runKey, a.Name()+"_input", current.Input())

		out, err := perform(ctx, a, current, ec)
		if err != nil {
			ec.Logf("Sequential process: agent %s failed task: %s. Error: %v", a.Name(), current.Description(), err)
			cause := fmt.Errorf("agent %s: %w", a.Name(), err)
			if task.Complete(agent.Failed(cause)) {
				ec.RecordStatus(task)
			}
			return sequentialFailedOutput, cause
		}

		output = out
		ec.SetTaskData(runKey, a.Name()+"_output", output)
		ec.Logf("Sequential process: agent %s finished task. Output: %s", a.Name(), output)

		if s.Options.PerHopCallbacks && i < len(agents)-1 {
			task.InvokeCallback(agent.Succeeded(output))
		}
	}

	if task.Complete(agent.Succeeded(output)) {
		ec.RecordStatus(task)
	}
	ec.Logf("Sequential process: finished. Final output: %s", output)
	return output, nil
}
