package hitl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/BaSui01/agentcrew/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAgent(t *testing.T, timeout time.Duration) *agent.ReasoningAgent {
	t.Helper()
	a, err := agent.NewReasoningAgent(agent.ReasoningConfig{
		Name:              "dba",
		Role:              "database administrator",
		HumanInputTimeout: timeout,
	}, llm.EchoCompleter{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func waitPending(t *testing.T, b *Broker) *Request {
	t.Helper()
	testutil.AssertEventuallyTrue(t, func() bool { return len(b.Pending()) == 1 }, 5*time.Second)
	pending := b.Pending()
	require.Len(t, pending, 1)
	return pending[0]
}

func TestBroker_ResolveResumesAgent(t *testing.T) {
	broker := NewBroker(nil, zap.NewNop())
	ec := agent.NewExecutionContext(agent.WithRunID("run-1"), agent.WithHumanInputNotifier(broker))
	task := agent.NewTask("choose a database",
		agent.WithInput(map[string]any{"team": "payments"}),
		agent.WithExpectedOutput("one engine name"),
		agent.WithHumanInputRequired(),
	)

	fut := newAgent(t, 0).PerformTask(testutil.TestContext(t), task, ec)

	req := waitPending(t, broker)
	assert.Equal(t, task.ID(), req.ID)
	assert.Equal(t, "run-1", req.RunID)
	assert.Equal(t, "dba", req.Agent)
	assert.Equal(t, "choose a database", req.Description)
	assert.Equal(t, map[string]any{"team": "payments"}, req.Input)
	assert.Equal(t, "one engine name", req.ExpectedOutput)
	assert.Equal(t, RequestStatusPending, req.Status)
	assert.Equal(t, agent.StatusAwaitingHumanInput, task.Status())

	require.NoError(t, broker.Resolve(testutil.TestContext(t), task.ID(), "postgres"))

	out, err := fut.Await(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "postgres", out)
	assert.Equal(t, agent.StatusCompleted, task.Status())
	assert.Empty(t, broker.Pending())

	stored, err := broker.Get(testutil.TestContext(t), task.ID())
	require.NoError(t, err)
	assert.Equal(t, RequestStatusResolved, stored.Status)
	assert.Equal(t, "postgres", stored.Response)
	require.NotNil(t, stored.SettledAt)
}

func TestBroker_ResolveUnknownTask(t *testing.T) {
	broker := NewBroker(nil, nil)
	err := broker.Resolve(context.Background(), "missing", "x")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestBroker_ResolveTwice(t *testing.T) {
	broker := NewBroker(nil, zap.NewNop())
	ec := agent.NewExecutionContext(agent.WithHumanInputNotifier(broker))
	task := agent.NewTask("approve", agent.WithHumanInputRequired())
	fut := newAgent(t, 0).PerformTask(testutil.TestContext(t), task, ec)

	waitPending(t, broker)
	require.NoError(t, broker.Resolve(testutil.TestContext(t), task.ID(), "yes"))
	assert.ErrorIs(t, broker.Resolve(testutil.TestContext(t), task.ID(), "no"), ErrRequestNotFound)

	out, err := fut.Await(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestBroker_TimeoutCancelsRequest(t *testing.T) {
	broker := NewBroker(nil, zap.NewNop())
	ec := agent.NewExecutionContext(agent.WithHumanInputNotifier(broker))
	task := agent.NewTask("approve", agent.WithHumanInputRequired())

	fut := newAgent(t, 30*time.Millisecond).PerformTask(testutil.TestContext(t), task, ec)
	_, err := fut.Await(testutil.TestContext(t))
	assert.ErrorIs(t, err, agent.ErrHumanInputTimeout)

	assert.Empty(t, broker.Pending())
	stored, err := broker.Get(testutil.TestContext(t), task.ID())
	require.NoError(t, err)
	assert.Equal(t, RequestStatusCancelled, stored.Status)
	assert.Empty(t, stored.Response)

	assert.ErrorIs(t, broker.Resolve(testutil.TestContext(t), task.ID(), "late"), ErrRequestNotFound)
}

func TestBroker_ContextCancelCancelsRequest(t *testing.T) {
	broker := NewBroker(nil, zap.NewNop())
	ec := agent.NewExecutionContext(agent.WithHumanInputNotifier(broker))
	task := agent.NewTask("approve", agent.WithHumanInputRequired())

	ctx, cancel := context.WithCancel(context.Background())
	fut := newAgent(t, 0).PerformTask(ctx, task, ec)
	waitPending(t, broker)
	cancel()

	_, err := fut.Await(testutil.TestContext(t))
	assert.ErrorIs(t, err, context.Canceled)

	cancelled, err := broker.List(testutil.TestContext(t), RequestStatusCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, task.ID(), cancelled[0].ID)
}

func TestBroker_DirectInputMarksResolved(t *testing.T) {
	broker := NewBroker(nil, zap.NewNop())
	ec := agent.NewExecutionContext(agent.WithHumanInputNotifier(broker))
	task := agent.NewTask("approve", agent.WithHumanInputRequired())

	fut := newAgent(t, 0).PerformTask(testutil.TestContext(t), task, ec)
	waitPending(t, broker)
	require.NoError(t, task.SetHumanInput("typed at the console"))

	_, err := fut.Await(testutil.TestContext(t))
	require.NoError(t, err)

	testutil.AssertEventuallyTrue(t, func() bool {
		stored, err := broker.Get(context.Background(), task.ID())
		return err == nil && stored.Status == RequestStatusResolved
	}, 5*time.Second)
	stored, err := broker.Get(testutil.TestContext(t), task.ID())
	require.NoError(t, err)
	assert.Equal(t, "typed at the console", stored.Response)
}

func TestBroker_HandlersNotified(t *testing.T) {
	broker := NewBroker(nil, zap.NewNop())

	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		broker.RegisterHandler(func(_ context.Context, req *Request) error {
			mu.Lock()
			seen = append(seen, req.ID)
			mu.Unlock()
			done <- struct{}{}
			return nil
		})
	}

	ec := agent.NewExecutionContext(agent.WithHumanInputNotifier(broker))
	task := agent.NewTask("approve", agent.WithHumanInputRequired())
	fut := newAgent(t, 0).PerformTask(testutil.TestContext(t), task, ec)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("handler not called")
		}
	}
	mu.Lock()
	assert.Equal(t, []string{task.ID(), task.ID()}, seen)
	mu.Unlock()

	require.NoError(t, broker.Resolve(testutil.TestContext(t), task.ID(), "ok"))
	_, err := fut.Await(testutil.TestContext(t))
	require.NoError(t, err)
}
