package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/crews"
	"github.com/BaSui01/agentcrew/testutil"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialEvents(t *testing.T, api *testAPI, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(api.server.URL, "http") + "/v1/events" + query
	conn, _, err := websocket.Dial(testutil.TestContext(t), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	testutil.AssertEventuallyTrue(t, func() bool { return api.bus.Subscribers() == 1 }, 5*time.Second)
	return conn
}

func TestEventsHandler_StreamsRunEvents(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")
	conn := dialEvents(t, api, "")

	var created ExecutionResponse
	status, _ := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{Description: "stream me"}, &created)
	require.Equal(t, http.StatusAccepted, status)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var finished bool
	for !finished {
		var e agent.Event
		require.NoError(t, wsjson.Read(ctx, conn, &e))
		assert.Equal(t, created.ID, e.RunID)
		if e.Type == agent.EventLog && strings.HasPrefix(e.Message, "Crew execution finished") {
			finished = true
		}
	}
}

func TestEventsHandler_FiltersByRun(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")
	conn := dialEvents(t, api, "?run_id=wanted")

	api.bus.Publish(agent.Event{Type: agent.EventLog, RunID: "other", Message: "skip"})
	api.bus.Publish(agent.Event{Type: agent.EventLog, RunID: "wanted", Message: "keep"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var e agent.Event
	require.NoError(t, wsjson.Read(ctx, conn, &e))
	assert.Equal(t, "wanted", e.RunID)
	assert.Equal(t, "keep", e.Message)
}

func TestEventsHandler_BusCloseEndsStream(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")
	conn := dialEvents(t, api, "")

	api.bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func TestEventsHandler_ClientDisconnectUnsubscribes(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")
	conn := dialEvents(t, api, "")

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
	testutil.AssertEventuallyTrue(t, func() bool { return api.bus.Subscribers() == 0 }, 5*time.Second)
}
