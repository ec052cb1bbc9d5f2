package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/crews"
	"github.com/BaSui01/agentcrew/agent/hitl"
	"github.com/BaSui01/agentcrew/internal/eventbus"
	"github.com/BaSui01/agentcrew/llm"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testAPI 用 Echo 后端搭建的完整处理器集合
type testAPI struct {
	crew       *crews.Crew
	broker     *hitl.Broker
	bus        *eventbus.Bus
	executions *ExecutionHandler
	server     *httptest.Server
}

func newTestAPI(t *testing.T, process crews.ProcessType, names ...string) *testAPI {
	t.Helper()
	logger := zap.NewNop()

	agents := make([]agent.Agent, 0, len(names))
	for _, name := range names {
		a, err := agent.NewReasoningAgent(agent.ReasoningConfig{Name: name, Role: name}, llm.EchoCompleter{}, logger)
		require.NoError(t, err)
		agents = append(agents, a)
	}

	bus := eventbus.NewBus(logger)
	broker := hitl.NewBroker(nil, logger)
	crew, err := crews.NewCrew(crews.Config{Name: "api-crew", Process: process}, agents, logger,
		crews.WithHumanInputNotifier(broker),
		crews.WithEventSink(bus),
	)
	require.NoError(t, err)

	executions, err := NewExecutionHandler(crew, 0, logger)
	require.NoError(t, err)
	hitlHandler := NewHITLHandler(broker, logger)
	events := NewEventsHandler(bus, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/executions", executions.HandleCreate)
	mux.HandleFunc("GET /v1/executions", executions.HandleList)
	mux.HandleFunc("GET /v1/executions/{id}", executions.HandleGet)
	mux.HandleFunc("GET /v1/hitl/requests", hitlHandler.HandleList)
	mux.HandleFunc("GET /v1/hitl/requests/{taskID}", hitlHandler.HandleGet)
	mux.HandleFunc("POST /v1/hitl/requests/{taskID}", hitlHandler.HandleResolve)
	mux.HandleFunc("GET /v1/events", events.HandleStream)

	srv := httptest.NewServer(mux)
	api := &testAPI{crew: crew, broker: broker, bus: bus, executions: executions, server: srv}
	t.Cleanup(func() {
		executions.Close()
		srv.Close()
		bus.Close()
		_ = crew.Close()
	})
	return api
}

// do 发送 JSON 请求并解码统一响应，data 为 nil 时忽略数据
func (a *testAPI) do(t *testing.T, method, path string, body any, data any) (int, Response) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return resp.StatusCode, raw.Response
}
