package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/crews"
	"github.com/BaSui01/agentcrew/testutil"
	"github.com/BaSui01/agentcrew/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionHandler_CreateAndWait(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "drafter", "editor")

	var got ExecutionResponse
	status, resp := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{
		Description: "hello",
		Input:       map[string]any{"tone": "dry"},
		Wait:        true,
	}, &got)

	require.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
	assert.True(t, got.Done)
	assert.Equal(t, "Echo: Echo: hello", got.Output)
	assert.Empty(t, got.Error)
	assert.Equal(t, "api-crew", got.Crew)
	assert.Equal(t, crews.ProcessSequential, got.Process)
	assert.Equal(t, agent.StatusCompleted, got.Task.Status)
	assert.Equal(t, map[string]any{"tone": "dry"}, got.Task.Input)
	assert.NotEmpty(t, got.ID)
}

func TestExecutionHandler_CreateAsyncThenGet(t *testing.T) {
	api := newTestAPI(t, crews.ProcessConsensual, "a", "b")

	var created ExecutionResponse
	status, _ := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{Description: "pick one"}, &created)
	require.Equal(t, http.StatusAccepted, status)
	require.NotEmpty(t, created.ID)

	var got ExecutionResponse
	testutil.AssertEventuallyTrue(t, func() bool {
		got = ExecutionResponse{}
		code, _ := api.do(t, http.MethodGet, "/v1/executions/"+created.ID, nil, &got)
		return code == http.StatusOK && got.Done
	}, 5*time.Second)
	assert.Equal(t, "Echo: Original Task: pick one", got.Output)

	var list []ExecutionResponse
	status, _ = api.do(t, http.MethodGet, "/v1/executions", nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestExecutionHandler_FailedRunKeepsText(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential)

	var got ExecutionResponse
	status, _ := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{Description: "nobody", Wait: true}, &got)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, got.Done)
	assert.Equal(t, "Error: No agents available.", got.Output)
	assert.NotEmpty(t, got.Error)
}

func TestExecutionHandler_GetUnknown(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")

	status, resp := api.do(t, http.MethodGet, "/v1/executions/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrNotFound), resp.Error.Code)
}

func TestExecutionHandler_Validation(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")

	status, resp := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{Description: "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "description is required", resp.Error.Message)

	status, _ = api.do(t, http.MethodPost, "/v1/executions", map[string]any{"description": "x", "priority": 1}, nil)
	assert.Equal(t, http.StatusBadRequest, status, "unknown fields are rejected")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/executions", strings.NewReader(`{"description":"x"}`))
	r.Header.Set("Content-Type", "text/plain")
	api.executions.HandleCreate(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestExecutionHandler_PresetHumanInput(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "dba")

	preset := "mysql"
	var got ExecutionResponse
	status, _ := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{
		Description:        "choose a database",
		RequiresHumanInput: true,
		HumanInput:         &preset,
		Wait:               true,
	}, &got)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Echo: choose a database", got.Output)
	assert.Empty(t, api.broker.Pending(), "preset input never waits")
}

func TestExecutionHandler_CloseRejectsNewRuns(t *testing.T) {
	api := newTestAPI(t, crews.ProcessSequential, "a")
	api.executions.Close()

	status, resp := api.do(t, http.MethodPost, "/v1/executions", ExecutionRequest{Description: "late"}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrServiceUnavailable), resp.Error.Code)
}
