package handlers

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/BaSui01/agentcrew/agent"
	"github.com/BaSui01/agentcrew/agent/crews"
	"github.com/BaSui01/agentcrew/api"
	"github.com/BaSui01/agentcrew/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// DefaultTrackedExecutions 默认保留的运行记录数
const DefaultTrackedExecutions = 1024

// CrewExecutor 可异步执行任务的 Crew
type CrewExecutor interface {
	Name() string
	Process() crews.ProcessType
	Execute(ctx context.Context, task *agent.Task) *crews.Execution
}

// ExecutionRequest 提交任务请求
type ExecutionRequest = api.ExecutionRequest

// ExecutionResponse 一次运行的状态
type ExecutionResponse = api.ExecutionResponse

// =============================================================================
// 🚀 Execution Handler
// =============================================================================

// ExecutionHandler 提交与查询 Crew 运行
//
// 运行使用独立于请求的上下文，客户端断开不会取消运行；Close 取消所有运行。
type ExecutionHandler struct {
	crew    CrewExecutor
	logger  *zap.Logger
	tracked *lru.Cache[string, *crews.Execution]
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
}

// NewExecutionHandler 创建处理器，size <= 0 时使用 DefaultTrackedExecutions
func NewExecutionHandler(crew CrewExecutor, size int, logger *zap.Logger) (*ExecutionHandler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultTrackedExecutions
	}
	tracked, err := lru.New[string, *crews.Execution](size)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExecutionHandler{
		crew:    crew,
		logger:  logger.With(zap.String("handler", "executions")),
		tracked: tracked,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Close 取消所有未结束的运行
func (h *ExecutionHandler) Close() {
	h.cancel()
}

// HandleCreate POST /v1/executions
func (h *ExecutionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req ExecutionRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "description is required", h.logger)
		return
	}

	opts := []agent.TaskOption{agent.WithInput(req.Input), agent.WithExpectedOutput(req.ExpectedOutput)}
	if req.RequiresHumanInput {
		opts = append(opts, agent.WithHumanInputRequired())
	}
	if req.HumanInput != nil {
		opts = append(opts, agent.WithHumanInput(*req.HumanInput))
	}
	task := agent.NewTask(req.Description, opts...)

	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		WriteErrorMessage(w, http.StatusServiceUnavailable, types.ErrServiceUnavailable, "server is shutting down", h.logger)
		return
	}
	exec := h.crew.Execute(h.ctx, task)
	h.tracked.Add(exec.ID(), exec)
	h.mu.Unlock()

	h.logger.Info("execution submitted",
		zap.String("execution_id", exec.ID()),
		zap.String("task_id", task.ID()),
		zap.Bool("wait", req.Wait),
	)

	if !req.Wait {
		WriteStatus(w, http.StatusAccepted, h.view(exec))
		return
	}

	select {
	case <-exec.Done():
		WriteStatus(w, http.StatusOK, h.view(exec))
	case <-r.Context().Done():
		// 客户端已断开，运行继续，可稍后按 ID 查询
		h.logger.Debug("client gone while waiting", zap.String("execution_id", exec.ID()))
	}
}

// HandleGet GET /v1/executions/{id}
func (h *ExecutionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exec, ok := h.tracked.Peek(id)
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrNotFound, "execution not found: "+id, h.logger)
		return
	}
	WriteSuccess(w, h.view(exec))
}

// HandleList GET /v1/executions，按开始时间从新到旧
func (h *ExecutionHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	execs := h.tracked.Values()
	views := make([]ExecutionResponse, 0, len(execs))
	for _, exec := range execs {
		views = append(views, h.view(exec))
	}
	slices.SortStableFunc(views, func(a, b ExecutionResponse) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	WriteSuccess(w, views)
}

func (h *ExecutionHandler) view(exec *crews.Execution) ExecutionResponse {
	resp := ExecutionResponse{
		ID:        exec.ID(),
		Crew:      h.crew.Name(),
		Process:   exec.Process(),
		Task:      exec.Task().Snapshot(),
		StartedAt: exec.StartedAt(),
	}
	out, done := exec.Result()
	if !done {
		return resp
	}
	resp.Done = true
	resp.Output = out
	if err := exec.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}
