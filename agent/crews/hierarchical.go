package crews

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentcrew/agent"
)

// HierarchicalStrategy 经理/工人分解策略
//
// 第一个 Agent 为经理，其余为按名称寻址的工人。经理先产出计划，子任务按
// 计划顺序逐个执行，单个子任务失败不会中止计划；最后经理综合所有结果。
type HierarchicalStrategy struct{}

// Process 策略类型
func (s *HierarchicalStrategy) Process() ProcessType { return ProcessHierarchical }

// subTaskOutcome 子任务结果，按描述去重并保持计划顺序
type subTaskOutcome struct {
	description string
	result      string
}

// Execute 执行层级流程
func (s *HierarchicalStrategy) Execute(ctx context.Context, task *agent.Task, agents []agent.Agent, ec *agent.ExecutionContext) (string, error) {
	ec.Logf("Hierarchical process: starting execution for task: %s", task.Description())

	switch len(agents) {
	case 0:
		return failNoAgents(task, ec, ProcessHierarchical)
	case 1:
		return delegateDirectly(ctx, agents[0], task, ec, ProcessHierarchical)
	}

	manager, workers := agents[0], agents[1:]
	if err := startOriginal(task); err != nil {
		return s.fail(task, ec, err)
	}
	ec.RecordStatus(task)

	// 第一轮：规划。使用原任务内容的副本，不携带回调
	ec.Logf("Hierarchical process: asking manager %s to plan sub-tasks", manager.Name())
	raw, err := perform(ctx, manager, task.Derive(), ec)
	if err != nil {
		return s.fail(task, ec, fmt.Errorf("manager %s planning: %w", manager.Name(), err))
	}
	ec.Logf("Hierarchical process: manager %s produced plan: %s", manager.Name(), raw)

	plan, err := ParsePlan(raw)
	if err != nil {
		ec.Logf("Hierarchical process: failed to parse manager's plan. Error: %v. Plan JSON: %s", err, raw)
		if task.Complete(agent.Failed(err)) {
			ec.RecordStatus(task)
		}
		return planParseOutputPrefix + raw, err
	}
	if len(plan.SubTasks) == 0 {
		ec.Logf("Hierarchical process: manager %s did not define any sub-tasks, using its output as the final answer", manager.Name())
		return completeOriginal(task, ec, raw, nil, hierarchicalFailPrefix)
	}

	// 第二轮：按计划顺序执行子任务
	outcomes := s.runSubTasks(ctx, task, plan, workers, ec)
	if err := ctx.Err(); err != nil {
		return s.fail(task, ec, err)
	}

	// 第三轮：经理综合
	ec.Logf("Hierarchical process: all sub-tasks processed, asking manager %s to synthesize final answer", manager.Name())
	synthesis := agent.NewTask(synthesisDescription(task.Description(), outcomes, plan.ManagerNotes),
		agent.WithExpectedOutput(task.ExpectedOutput()),
		agent.WithCallback(func(r agent.TaskResult) { task.Complete(r) }),
	)
	out, err := perform(ctx, manager, synthesis, ec)
	if err != nil {
		ec.Logf("Hierarchical process: an error occurred in the process. Error: %v", err)
	}
	return completeOriginal(task, ec, out, err, hierarchicalFailPrefix)
}

func (s *HierarchicalStrategy) runSubTasks(ctx context.Context, task *agent.Task, plan *Plan, workers []agent.Agent, ec *agent.ExecutionContext) []subTaskOutcome {
	var outcomes []subTaskOutcome
	index := make(map[string]int, len(plan.SubTasks))
	record := func(description, result string) {
		if i, ok := index[description]; ok {
			outcomes[i].result = result
			return
		}
		index[description] = len(outcomes)
		outcomes = append(outcomes, subTaskOutcome{description: description, result: result})
	}

	for _, st := range plan.SubTasks {
		worker := findAgent(workers, st.AssignedAgent)
		if worker == nil {
			ec.Logf("Hierarchical process: could not find assigned agent: %s for sub-task: %s", st.AssignedAgent, st.Description)
			record(st.Description, agentNotFoundPrefix+st.AssignedAgent)
			continue
		}

		sub := agent.NewTask(st.Description,
			agent.WithInput(task.Input()),
			agent.WithExpectedOutput(st.ExpectedOutput),
		)
		ec.Logf("Hierarchical process: assigning sub-task '%s' to agent %s", st.Description, worker.Name())
		out, err := perform(ctx, worker, sub, ec)
		if err != nil {
			ec.Logf("Hierarchical process: sub-task '%s' failed for agent %s. Error: %v", st.Description, worker.Name(), err)
			record(st.Description, failureText(out, err))
			continue
		}
		ec.Logf("Hierarchical process: sub-task '%s' completed by %s. Output: %s", st.Description, worker.Name(), out)
		record(st.Description, out)
	}
	return outcomes
}

func (s *HierarchicalStrategy) fail(task *agent.Task, ec *agent.ExecutionContext, err error) (string, error) {
	ec.Logf("Hierarchical process: an error occurred in the process. Error: %v", err)
	return completeOriginal(task, ec, "", err, hierarchicalFailPrefix)
}

// synthesisDescription 经理综合任务的描述
func synthesisDescription(original string, outcomes []subTaskOutcome, notes string) string {
	var b strings.Builder
	b.WriteString("Original Task: ")
	b.WriteString(original)
	b.WriteString("\nSynthesize the final answer for the original task based on the following sub-task results:\n")
	for _, o := range outcomes {
		fmt.Fprintf(&b, "\n- Sub-task: %s\n  Result: %s", o.description, o.result)
	}
	if notes != "" {
		b.WriteString("\n\nManager's initial notes for synthesis: ")
		b.WriteString(notes)
	}
	return b.String()
}

// findAgent 按名称查找，返回第一个匹配项
func findAgent(agents []agent.Agent, name string) agent.Agent {
	for _, a := range agents {
		if a.Name() == name {
			return a
		}
	}
	return nil
}
