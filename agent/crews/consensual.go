package crews

import (
	"context"
	"fmt"
	"strings"

	"github.com/BaSui01/agentcrew/agent"
	"golang.org/x/sync/errgroup"
)

// ConsensualStrategy 并行执行后综合的共识策略
//
// 每个 Agent 使用原任务的独立派生副本并行执行，失败被记录为
// "Error: ..." 观点而不是中止其他分支；全部结束后由最后一个 Agent 综合。
type ConsensualStrategy struct{}

// Process 策略类型
func (s *ConsensualStrategy) Process() ProcessType { return ProcessConsensual }

// perspective 单个 Agent 的观点
type perspective struct {
	agent  string
	output string
}

// Execute 执行共识流程
func (s *ConsensualStrategy) Execute(ctx context.Context, task *agent.Task, agents []agent.Agent, ec *agent.ExecutionContext) (string, error) {
	ec.Logf("Consensual process: starting execution for task: %s (ID: %s)", task.Description(), task.ID())

	switch len(agents) {
	case 0:
		return failNoAgents(task, ec, ProcessConsensual)
	case 1:
		return delegateDirectly(ctx, agents[0], task, ec, ProcessConsensual)
	}

	if err := startOriginal(task); err != nil {
		return s.fail(task, ec, err)
	}
	ec.RecordStatus(task)

	perspectives := make([]perspective, len(agents))
	var g errgroup.Group
	for i, a := range agents {
		branch := task.Derive()
		ec.Logf("Consensual process: agent %s starting parallel execution for task %s", a.Name(), task.ID())
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					// 分支 panic 记录为该 Agent 的失败观点
					ec.Logf("Consensual process: agent %s panicked for task %s: %v", a.Name(), task.ID(), r)
					perspectives[i] = perspective{agent: a.Name(), output: fmt.Sprintf("Error: panic: %v", r)}
				}
			}()
			out, err := perform(ctx, a, branch, ec)
			if err != nil {
				ec.Logf("Consensual process: agent %s failed for task %s. Error: %v", a.Name(), task.ID(), err)
				perspectives[i] = perspective{agent: a.Name(), output: failureText(out, err)}
				return nil
			}
			ec.Logf("Consensual process: agent %s completed task %s. Output: %s", a.Name(), task.ID(), out)
			perspectives[i] = perspective{agent: a.Name(), output: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(task, ec, err)
	}
	if err := ctx.Err(); err != nil {
		return s.fail(task, ec, err)
	}
	ec.Logf("Consensual process: all agents completed parallel execution for task %s", task.ID())

	synthesizer := agents[len(agents)-1]
	synthesis := agent.NewTask(consensusDescription(task.Description(), perspectives),
		agent.WithInput(task.Input()),
		agent.WithExpectedOutput(task.ExpectedOutput()),
		agent.WithCallback(func(r agent.TaskResult) { task.Complete(r) }),
	)
	ec.Logf("Consensual process: asking synthesizer agent %s to synthesize final answer for task %s", synthesizer.Name(), task.ID())
	out, err := perform(ctx, synthesizer, synthesis, ec)
	if err != nil {
		ec.Logf("Consensual process: an error occurred during synthesis for task %s. Error: %v", task.ID(), err)
	}
	return completeOriginal(task, ec, out, err, consensualFailPrefix)
}

func (s *ConsensualStrategy) fail(task *agent.Task, ec *agent.ExecutionContext, err error) (string, error) {
	ec.Logf("Consensual process: an error occurred during the consensual process for task %s. Error: %v", task.ID(), err)
	return completeOriginal(task, ec, "", err, consensualFailPrefix)
}

// consensusDescription 综合任务的描述，观点按 Agent 列表顺序排列
func consensusDescription(original string, perspectives []perspective) string {
	var b strings.Builder
	b.WriteString("Original Task: ")
	b.WriteString(original)
	b.WriteString("\nSynthesize a final answer for the original task based on the following perspectives:\n")
	for _, p := range perspectives {
		fmt.Fprintf(&b, "\n- Agent %s said: '%s'", p.agent, p.output)
	}
	return b.String()
}
