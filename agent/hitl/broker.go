package hitl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentcrew/agent"
	"go.uber.org/zap"
)

// ErrRequestNotFound 请求不存在或已结束
var ErrRequestNotFound = errors.New("human input request not found")

// RequestHandler 新请求登记后被异步调用
type RequestHandler func(ctx context.Context, req *Request) error

// Broker 登记等待人工输入的任务并按任务 ID 转交人工输入
//
// Broker 实现 agent.HumanInputNotifier，挂载到执行上下文后，每个进入
// AWAITING_HUMAN_INPUT 的任务都会生成一条 pending 请求。
type Broker struct {
	store    RequestStore
	logger   *zap.Logger
	handlers []RequestHandler
	pending  map[string]*pendingRequest
	mu       sync.RWMutex
}

type pendingRequest struct {
	request *Request
	task    *agent.Task
}

var _ agent.HumanInputNotifier = (*Broker)(nil)

// NewBroker 创建 Broker，store 为 nil 时使用内存存储
func NewBroker(store RequestStore, logger *zap.Logger) *Broker {
	if store == nil {
		store = NewInMemoryRequestStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		store:   store,
		logger:  logger.With(zap.String("component", "hitl_broker")),
		pending: make(map[string]*pendingRequest),
	}
}

// RegisterHandler 注册新请求处理器
func (b *Broker) RegisterHandler(handler RequestHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// HumanInputRequested 登记新的 pending 请求并通知处理器
func (b *Broker) HumanInputRequested(runID string, task *agent.Task, agentName string) {
	req := &Request{
		ID:             task.ID(),
		RunID:          runID,
		Agent:          agentName,
		Description:    task.Description(),
		Input:          task.Input(),
		ExpectedOutput: task.ExpectedOutput(),
		Status:         RequestStatusPending,
		CreatedAt:      time.Now(),
	}

	b.logger.Info("human input requested",
		zap.String("task_id", req.ID),
		zap.String("run_id", runID),
		zap.String("agent", agentName),
	)

	ctx := context.Background()
	if err := b.store.Save(ctx, req); err != nil {
		b.logger.Error("failed to save human input request", zap.String("task_id", req.ID), zap.Error(err))
	}

	b.mu.Lock()
	b.pending[req.ID] = &pendingRequest{request: req, task: task}
	b.mu.Unlock()

	b.notifyHandlers(ctx, req.clone())
}

// HumanInputSettled 等待结束；未经 Resolve 结束的请求按任务状态记为
// resolved（输入直接写入任务）或 cancelled（取消或超时）
func (b *Broker) HumanInputSettled(task *agent.Task) {
	b.mu.Lock()
	p, ok := b.pending[task.ID()]
	if ok {
		delete(b.pending, task.ID())
	}
	b.mu.Unlock()
	if !ok {
		return
	}

	req := p.request
	if input, has := task.HumanInput(); has && task.Status() != agent.StatusFailed {
		req.Status = RequestStatusResolved
		req.Response = input
	} else {
		req.Status = RequestStatusCancelled
	}
	b.settle(context.Background(), req)
}

// Resolve 向等待中的任务提供人工输入
func (b *Broker) Resolve(ctx context.Context, taskID, input string) error {
	b.mu.Lock()
	p, ok := b.pending[taskID]
	if ok {
		delete(b.pending, taskID)
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRequestNotFound, taskID)
	}

	req := p.request
	if err := p.task.SetHumanInput(input); err != nil {
		// 等待已因取消或超时结束
		req.Status = RequestStatusCancelled
		b.settle(ctx, req)
		return fmt.Errorf("resolve human input for task %s: %w", taskID, err)
	}

	req.Status = RequestStatusResolved
	req.Response = input
	b.settle(ctx, req)
	return nil
}

// Pending 当前等待中的请求，按创建时间排序
func (b *Broker) Pending() []*Request {
	b.mu.RLock()
	results := make([]*Request, 0, len(b.pending))
	for _, p := range b.pending {
		results = append(results, p.request.clone())
	}
	b.mu.RUnlock()

	sortByCreatedAt(results)
	return results
}

// Get 按任务 ID 读取请求（包括已结束的请求）
func (b *Broker) Get(ctx context.Context, taskID string) (*Request, error) {
	return b.store.Load(ctx, taskID)
}

// List 按状态列出存储中的请求
func (b *Broker) List(ctx context.Context, status RequestStatus) ([]*Request, error) {
	return b.store.List(ctx, status)
}

func (b *Broker) settle(ctx context.Context, req *Request) {
	now := time.Now()
	req.SettledAt = &now

	if err := b.store.Update(ctx, req); err != nil {
		b.logger.Error("failed to update human input request", zap.String("task_id", req.ID), zap.Error(err))
	}
	b.logger.Info("human input request settled",
		zap.String("task_id", req.ID),
		zap.String("status", string(req.Status)),
	)
}

func (b *Broker) notifyHandlers(ctx context.Context, req *Request) {
	b.mu.RLock()
	handlers := append([]RequestHandler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h RequestHandler) {
			if err := h(ctx, req); err != nil {
				b.logger.Error("handler error", zap.String("task_id", req.ID), zap.Error(err))
			}
		}(handler)
	}
}
