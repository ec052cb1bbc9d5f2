package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/config"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// startTestNATSServer 启动内嵌 NATS 服务器
func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		srv.Shutdown()
		srv.WaitForShutdown()
	})
	return srv
}

func connect(t *testing.T, srv *natsserver.Server) *nats.Conn {
	t.Helper()
	nc, err := Connect(config.EventsConfig{NATSURL: srv.ClientURL()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	return nc
}

func TestConnect_Disabled(t *testing.T) {
	nc, err := Connect(config.EventsConfig{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, nc)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "agentcrew.log", subject("agentcrew", "log"))
	assert.Equal(t, "agentcrew.log", subject("agentcrew.", "log"))
	assert.Equal(t, "log", subject("", "log"))
}

func TestNATSPublisher(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	sub, err := nc.SubscribeSync("agentcrew.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	pub := NewNATSPublisher(nc, "agentcrew", zap.NewNop())
	pub.Publish(agent.Event{
		Type:   agent.EventTaskStatus,
		RunID:  "run-1",
		TaskID: "task-1",
		Status: agent.StatusCompleted,
	})
	require.NoError(t, nc.Flush())

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "agentcrew.task_status", msg.Subject)

	var got agent.Event
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "task-1", got.TaskID)
	assert.Equal(t, agent.StatusCompleted, got.Status)
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []HumanInputResponse
	err   error
}

func (f *fakeResolver) Resolve(_ context.Context, taskID, input string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, HumanInputResponse{TaskID: taskID, Input: input})
	return f.err
}

func request(t *testing.T, nc *nats.Conn, subj string, payload []byte) HumanInputAck {
	t.Helper()
	msg, err := nc.Request(subj, payload, 2*time.Second)
	require.NoError(t, err)
	var ack HumanInputAck
	require.NoError(t, json.Unmarshal(msg.Data, &ack))
	return ack
}

func TestNATSHumanInputResponder(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	resolver := &fakeResolver{}
	responder := NewNATSHumanInputResponder(nc, "agentcrew", resolver, zap.NewNop())
	require.NoError(t, responder.Start())
	t.Cleanup(func() { _ = responder.Close() })
	assert.Error(t, responder.Start(), "second start fails")
	assert.Equal(t, "agentcrew.human_input.respond", responder.Subject())

	payload, err := json.Marshal(HumanInputResponse{TaskID: "task-9", Input: "approved"})
	require.NoError(t, err)
	ack := request(t, nc, responder.Subject(), payload)
	assert.True(t, ack.OK)
	assert.Empty(t, ack.Error)

	resolver.mu.Lock()
	assert.Equal(t, []HumanInputResponse{{TaskID: "task-9", Input: "approved"}}, resolver.calls)
	resolver.mu.Unlock()
}

func TestNATSHumanInputResponder_Errors(t *testing.T) {
	srv := startTestNATSServer(t)
	nc := connect(t, srv)

	resolver := &fakeResolver{err: errors.New("human input request not found")}
	responder := NewNATSHumanInputResponder(nc, "crew", resolver, nil)
	require.NoError(t, responder.Start())
	t.Cleanup(func() { _ = responder.Close() })

	ack := request(t, nc, "crew.human_input.respond", []byte("not json"))
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "invalid human input message")

	ack = request(t, nc, "crew.human_input.respond", []byte(`{"input":"x"}`))
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "task_id is required")

	ack = request(t, nc, "crew.human_input.respond", []byte(`{"task_id":"gone","input":"x"}`))
	assert.False(t, ack.OK)
	assert.Equal(t, "human input request not found", ack.Error)
}
