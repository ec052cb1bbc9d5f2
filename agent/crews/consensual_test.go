package crews

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isSynthesis(task *agent.Task) bool {
	return strings.HasPrefix(task.Description(), "Original Task:")
}

// synthesizer 分支阶段返回 view，综合阶段记录描述并返回 final
func synthesizer(view, final string, seen *string) func(context.Context, *agent.Task, *agent.ExecutionContext) (string, error) {
	var mu sync.Mutex
	return func(_ context.Context, task *agent.Task, _ *agent.ExecutionContext) (string, error) {
		if isSynthesis(task) {
			mu.Lock()
			*seen = task.Description()
			mu.Unlock()
			return final, nil
		}
		return view, nil
	}
}

func TestConsensual_BranchesRunConcurrently(t *testing.T) {
	var started sync.WaitGroup
	started.Add(2)
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()

	barrier := func(view string) func(context.Context, *agent.Task, *agent.ExecutionContext) (string, error) {
		return func(context.Context, *agent.Task, *agent.ExecutionContext) (string, error) {
			started.Done()
			select {
			case <-all:
				return view, nil
			case <-time.After(2 * time.Second):
				return "", errors.New("branches did not overlap")
			}
		}
	}

	var desc string
	a := newFuncAgent("a", barrier("a view"))
	b := newFuncAgent("b", barrier("b view"))
	synth := newFuncAgent("synth", synthesizer("synth view", "consensus", &desc))

	rec := &callbackRecorder{}
	task := agent.NewTask("pick a database", agent.WithCallback(rec.callback))
	out, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), task, []agent.Agent{a, b, synth}, agent.NewExecutionContext())
	require.NoError(t, err)
	assert.Equal(t, "consensus", out)

	assert.Equal(t, "Original Task: pick a database\n"+
		"Synthesize a final answer for the original task based on the following perspectives:\n"+
		"\n- Agent a said: 'a view'"+
		"\n- Agent b said: 'b view'"+
		"\n- Agent synth said: 'synth view'", desc)

	assert.Equal(t, agent.StatusCompleted, task.Status())
	assert.Equal(t, []agent.TaskResult{agent.Succeeded("consensus")}, rec.all())
	assert.Len(t, synth.received(), 2, "the last agent runs a branch and the synthesis")
}

func TestConsensual_FailedBranchStillSynthesizes(t *testing.T) {
	var desc string
	a := newFuncAgent("a", func(context.Context, *agent.Task, *agent.ExecutionContext) (string, error) {
		return "", errors.New("boom")
	})
	b := newFuncAgent("b", constant("b view"))
	synth := newFuncAgent("synth", synthesizer("synth view", "merged", &desc))

	rec := &callbackRecorder{}
	task := agent.NewTask("decide", agent.WithCallback(rec.callback))
	ec := agent.NewExecutionContext()

	out, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), task, []agent.Agent{a, b, synth}, ec)
	require.NoError(t, err)
	assert.Equal(t, "merged", out)
	assert.Contains(t, desc, "- Agent a said: 'Error: boom'")
	assert.Contains(t, desc, "- Agent b said: 'b view'")
	assert.Equal(t, []agent.TaskResult{agent.Succeeded("merged")}, rec.all())
	assert.True(t, hasLog(ec, "Consensual process: agent a failed for task "+task.ID()))
}

// panickingAgent PerformTask 同步 panic
type panickingAgent struct{ funcAgent }

func (p *panickingAgent) PerformTask(context.Context, *agent.Task, *agent.ExecutionContext) *agent.Future {
	panic("kaboom")
}

func TestConsensual_PanickingBranchIsCaptured(t *testing.T) {
	var desc string
	bad := &panickingAgent{funcAgent{name: "bad"}}
	synth := newFuncAgent("synth", synthesizer("ok", "survived", &desc))

	out, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), agent.NewTask("risky"), []agent.Agent{bad, synth}, agent.NewExecutionContext())
	require.NoError(t, err)
	assert.Equal(t, "survived", out)
	assert.Contains(t, desc, "- Agent bad said: 'Error: panic: kaboom'")
}

func TestConsensual_BranchesAreDerivedCopies(t *testing.T) {
	var desc string
	a := newFuncAgent("a", constant("yes"))
	synth := newFuncAgent("synth", synthesizer("also yes", "agreed", &desc))

	task := agent.NewTask("approve release",
		agent.WithInput(map[string]any{"version": "1.2.0"}),
		agent.WithExpectedOutput("yes or no"),
		agent.WithHumanInputRequired(),
		agent.WithHumanInput("ship it"),
	)
	_, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), task, []agent.Agent{a, synth}, agent.NewExecutionContext())
	require.NoError(t, err)

	branch := a.received()[0]
	assert.NotEqual(t, task.ID(), branch.ID())
	assert.Equal(t, "approve release", branch.Description())
	assert.Equal(t, map[string]any{"version": "1.2.0"}, branch.Input())
	assert.Equal(t, "yes or no", branch.ExpectedOutput())
	assert.True(t, branch.RequiresHumanInput())
	v, ok := branch.HumanInput()
	assert.True(t, ok)
	assert.Equal(t, "ship it", v)
	assert.False(t, branch.HasCallback())

	synthesis := synth.received()[1]
	assert.True(t, isSynthesis(synthesis))
	assert.False(t, synthesis.RequiresHumanInput())
	assert.Equal(t, map[string]any{"version": "1.2.0"}, synthesis.Input())
}

func TestConsensual_SynthesisFailure(t *testing.T) {
	a := newFuncAgent("a", constant("a view"))
	synth := newFuncAgent("synth", func(_ context.Context, task *agent.Task, _ *agent.ExecutionContext) (string, error) {
		if isSynthesis(task) {
			return "", errors.New("cannot agree")
		}
		return "synth view", nil
	})

	rec := &callbackRecorder{}
	task := agent.NewTask("disagree", agent.WithCallback(rec.callback))
	out, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), task, []agent.Agent{a, synth}, agent.NewExecutionContext())
	require.Error(t, err)
	assert.Equal(t, "Error: Consensual process failed. cannot agree", out)
	assert.Equal(t, agent.StatusFailed, task.Status())
	assert.Equal(t, []agent.TaskResult{{Status: agent.StatusFailed, Error: "cannot agree"}}, rec.all())
}

func TestConsensual_EchoAgents(t *testing.T) {
	agents := []agent.Agent{
		newReasoningAgent(t, "optimist", llm.EchoCompleter{}),
		newReasoningAgent(t, "pessimist", llm.EchoCompleter{}),
	}
	rec := &callbackRecorder{}
	task := agent.NewTask("forecast", agent.WithCallback(rec.callback))

	out, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), task, agents, agent.NewExecutionContext())
	require.NoError(t, err)
	assert.Equal(t, "Echo: Original Task: forecast", out)
	assert.Equal(t, []agent.TaskResult{agent.Succeeded(out)}, rec.all())
}

func TestConsensual_SingleAndNoAgents(t *testing.T) {
	out, err := (&ConsensualStrategy{}).Execute(testutil.TestContext(t), agent.NewTask("solo"),
		[]agent.Agent{newReasoningAgent(t, "only", llm.EchoCompleter{})}, agent.NewExecutionContext())
	require.NoError(t, err)
	assert.Equal(t, "Echo: solo", out)

	rec := &callbackRecorder{}
	task := agent.NewTask("nobody", agent.WithCallback(rec.callback))
	out, err = (&ConsensualStrategy{}).Execute(testutil.TestContext(t), task, nil, agent.NewExecutionContext())
	assert.ErrorIs(t, err, ErrNoAgents)
	assert.Equal(t, "Error: No agents available.", out)
	assert.Equal(t, agent.StatusFailed, task.Status())
	assert.Len(t, rec.all(), 1)
}

func TestConsensual_CancelledContext(t *testing.T) {
	block := func(ctx context.Context, _ *agent.Task, _ *agent.ExecutionContext) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	agents := []agent.Agent{newFuncAgent("a", block), newFuncAgent("b", block)}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	rec := &callbackRecorder{}
	task := agent.NewTask("never finishes", agent.WithCallback(rec.callback))
	out, err := (&ConsensualStrategy{}).Execute(ctx, task, agents, agent.NewExecutionContext())
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, strings.HasPrefix(out, "Error: Consensual process failed. "), out)
	assert.Equal(t, agent.StatusFailed, task.Status())
	assert.Len(t, rec.all(), 1)
}
