package agent

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusPending            TaskStatus = "PENDING"
	StatusInProgress         TaskStatus = "IN_PROGRESS"
	StatusAwaitingHumanInput TaskStatus = "AWAITING_HUMAN_INPUT"
	StatusCompleted          TaskStatus = "COMPLETED"
	StatusFailed             TaskStatus = "FAILED"
)

// IsTerminal 是否为终态
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// validTransitions 定义合法的状态转换，终态没有出边
var validTransitions = map[TaskStatus][]TaskStatus{
	StatusPending:            {StatusInProgress, StatusFailed},
	StatusInProgress:         {StatusAwaitingHumanInput, StatusCompleted, StatusFailed},
	StatusAwaitingHumanInput: {StatusInProgress, StatusFailed},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to TaskStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TaskResult 任务终态结果，Output 与 Error 二者恰有其一
type TaskResult struct {
	Status TaskStatus `json:"status"`
	Output string     `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Succeeded 构造成功结果
func Succeeded(output string) TaskResult {
	return TaskResult{Status: StatusCompleted, Output: output}
}

// Failed 构造失败结果
func Failed(err error) TaskResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return TaskResult{Status: StatusFailed, Error: msg}
}

// OK 是否成功
func (r TaskResult) OK() bool {
	return r.Status == StatusCompleted
}

// TaskCallback 任务进入终态时同步调用
type TaskCallback func(TaskResult)

// Task 工作单元
//
// 描述、输入、期望输出在创建后不可变；状态、分配的 Agent 与人工输入
// 由持有任务的 Agent 或编排策略在锁内修改。
type Task struct {
	id                 string
	description        string
	input              map[string]any
	expectedOutput     string
	requiresHumanInput bool
	callback           TaskCallback
	createdAt          time.Time
	// parent 派生来源；子任务等待人工输入时父任务同步进入等待
	parent *Task

	mu            sync.Mutex
	status        TaskStatus
	assignedAgent string
	humanInput    *string
	handle        *humanInputHandle
	result        *TaskResult
	// waiting 正在等待人工输入的派生任务，按进入等待的顺序
	waiting []*Task
}

// TaskOption 任务选项
type TaskOption func(*Task)

// WithTaskID 指定任务 ID（默认生成 UUID）
func WithTaskID(id string) TaskOption {
	return func(t *Task) {
		if id != "" {
			t.id = id
		}
	}
}

// WithDescription 覆盖描述，用于派生任务
func WithDescription(description string) TaskOption {
	return func(t *Task) { t.description = description }
}

// WithInput 设置输入参数
func WithInput(input map[string]any) TaskOption {
	return func(t *Task) { t.input = maps.Clone(input) }
}

// WithExpectedOutput 设置期望输出提示
func WithExpectedOutput(expected string) TaskOption {
	return func(t *Task) { t.expectedOutput = expected }
}

// WithCallback 设置完成回调
func WithCallback(cb TaskCallback) TaskOption {
	return func(t *Task) { t.callback = cb }
}

// WithHumanInputRequired 标记任务需要人工输入
func WithHumanInputRequired() TaskOption {
	return func(t *Task) { t.requiresHumanInput = true }
}

// WithHumanInput 预置人工输入
func WithHumanInput(value string) TaskOption {
	return func(t *Task) {
		v := value
		t.humanInput = &v
	}
}

// NewTask 创建任务
func NewTask(description string, opts ...TaskOption) *Task {
	t := &Task{
		id:          uuid.NewString(),
		description: description,
		input:       map[string]any{},
		status:      StatusPending,
		createdAt:   time.Now(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.input == nil {
		t.input = map[string]any{}
	}
	return t
}

// Derive 创建派生任务：新 ID，继承描述、输入、期望输出及人工输入
// 标记与已有取值，不继承回调。opts 可覆盖继承的字段。
//
// 派生任务等待人工输入期间，原任务处于 AWAITING_HUMAN_INPUT，
// 对原任务调用 SetHumanInput 会转交给最早进入等待的派生任务。
func (t *Task) Derive(opts ...TaskOption) *Task {
	inherited := []TaskOption{
		WithInput(t.input),
		WithExpectedOutput(t.expectedOutput),
	}
	if t.requiresHumanInput {
		inherited = append(inherited, WithHumanInputRequired())
	}
	if v, ok := t.HumanInput(); ok {
		inherited = append(inherited, WithHumanInput(v))
	}
	child := NewTask(t.description, append(inherited, opts...)...)
	child.parent = t
	return child
}

// Parent 派生来源，非派生任务返回 nil
func (t *Task) Parent() *Task { return t.parent }

func (t *Task) ID() string             { return t.id }
func (t *Task) Description() string    { return t.description }
func (t *Task) ExpectedOutput() string { return t.expectedOutput }
func (t *Task) RequiresHumanInput() bool {
	return t.requiresHumanInput
}
func (t *Task) CreatedAt() time.Time { return t.createdAt }
func (t *Task) HasCallback() bool    { return t.callback != nil }

// Input 返回输入参数的副本
func (t *Task) Input() map[string]any {
	return maps.Clone(t.input)
}

// Status 当前状态
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// AssignedAgent 当前负责的 Agent 名称
func (t *Task) AssignedAgent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.assignedAgent
}

// AssignTo 记录负责的 Agent
func (t *Task) AssignTo(agentName string) {
	t.mu.Lock()
	t.assignedAgent = agentName
	t.mu.Unlock()
}

// HumanInput 已提供的人工输入
func (t *Task) HumanInput() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.humanInput == nil {
		return "", false
	}
	return *t.humanInput, true
}

// Result 终态结果
func (t *Task) Result() (TaskResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.result == nil {
		return TaskResult{}, false
	}
	return *t.result, true
}

// Transition 执行非终态转换；进入终态请使用 Complete
func (t *Task) Transition(to TaskStatus) error {
	if to.IsTerminal() {
		return fmt.Errorf("%w: use Complete to reach %s", ErrInvalidTransition, to)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !CanTransition(t.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, to)
	}
	t.status = to
	return nil
}

// SetHumanInput 提供人工输入
//
// 仅当任务处于 AWAITING_HUMAN_INPUT 时生效：保存输入、回到 IN_PROGRESS，
// 并唤醒等待方一次；否则不做任何修改并返回 ErrNotAwaitingHumanInput。
func (t *Task) SetHumanInput(value string) error {
	t.mu.Lock()
	if t.status != StatusAwaitingHumanInput {
		status := t.status
		t.mu.Unlock()
		return fmt.Errorf("%w: task %s is %s", ErrNotAwaitingHumanInput, t.id, status)
	}
	if len(t.waiting) > 0 {
		child := t.waiting[0]
		t.mu.Unlock()
		return child.SetHumanInput(value)
	}
	v := value
	t.humanInput = &v
	t.status = StatusInProgress
	h := t.handle
	t.handle = nil
	t.mu.Unlock()

	t.parent.childSettled(t)
	if h != nil {
		h.resolve(value)
	}
	return nil
}

// Complete 进入终态并同步调用回调
//
// 已处于终态或转换不合法时返回 false，回调不会被调用，保证每个任务
// 的回调至多触发一次。
func (t *Task) Complete(result TaskResult) bool {
	if !result.Status.IsTerminal() {
		return false
	}

	t.mu.Lock()
	if !CanTransition(t.status, result.Status) {
		t.mu.Unlock()
		return false
	}
	wasWaiting := t.status == StatusAwaitingHumanInput && len(t.waiting) == 0
	t.status = result.Status
	t.result = &result
	t.handle = nil
	t.waiting = nil
	cb := t.callback
	t.mu.Unlock()

	if wasWaiting {
		t.parent.childSettled(t)
	}
	if cb != nil {
		cb(result)
	}
	return true
}

// InvokeCallback 直接调用回调而不改变状态，仅用于逐跳回调的兼容模式
func (t *Task) InvokeCallback(result TaskResult) {
	if t.callback != nil {
		t.callback(result)
	}
}

// beginHumanWait IN_PROGRESS -> AWAITING_HUMAN_INPUT 并安装新的一次性句柄
func (t *Task) beginHumanWait() (*humanInputHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.requiresHumanInput || t.humanInput != nil {
		return nil, fmt.Errorf("%w: task %s does not need human input", ErrInvalidTransition, t.id)
	}
	if !CanTransition(t.status, StatusAwaitingHumanInput) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, StatusAwaitingHumanInput)
	}
	h := newHumanInputHandle()
	t.handle = h
	t.status = StatusAwaitingHumanInput
	t.parent.childAwaiting(t)
	return h, nil
}

// abandonHumanWait 放弃等待并将任务置为 FAILED
//
// 若句柄已被解析（人工输入先到），返回 false 且不修改任务。
func (t *Task) abandonHumanWait(h *humanInputHandle, cause error) bool {
	t.mu.Lock()
	if t.handle != h || t.status != StatusAwaitingHumanInput {
		t.mu.Unlock()
		return false
	}
	result := Failed(cause)
	t.handle = nil
	t.status = StatusFailed
	t.result = &result
	cb := t.callback
	t.mu.Unlock()

	t.parent.childSettled(t)
	if cb != nil {
		cb(result)
	}
	return true
}

// childAwaiting 派生任务进入等待；父任务仍在执行时同步进入等待
//
// 调用方持有子任务的锁，加锁顺序固定为子任务在前。
func (t *Task) childAwaiting(child *Task) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusInProgress && len(t.waiting) == 0 {
		return
	}
	t.waiting = append(t.waiting, child)
	t.status = StatusAwaitingHumanInput
}

// childSettled 派生任务结束等待；没有其他等待者时父任务回到 IN_PROGRESS
func (t *Task) childSettled(child *Task) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := slices.Index(t.waiting, child)
	if idx == -1 {
		return
	}
	t.waiting = slices.Delete(t.waiting, idx, idx+1)
	if len(t.waiting) == 0 && t.status == StatusAwaitingHumanInput {
		t.status = StatusInProgress
	}
}

// TaskSnapshot 任务的只读快照
type TaskSnapshot struct {
	ID                 string         `json:"id"`
	Description        string         `json:"description"`
	Input              map[string]any `json:"input,omitempty"`
	ExpectedOutput     string         `json:"expected_output,omitempty"`
	Status             TaskStatus     `json:"status"`
	AssignedAgent      string         `json:"assigned_agent,omitempty"`
	RequiresHumanInput bool           `json:"requires_human_input"`
	Result             *TaskResult    `json:"result,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// Snapshot 返回任务快照
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := TaskSnapshot{
		ID:                 t.id,
		Description:        t.description,
		Input:              maps.Clone(t.input),
		ExpectedOutput:     t.expectedOutput,
		Status:             t.status,
		AssignedAgent:      t.assignedAgent,
		RequiresHumanInput: t.requiresHumanInput,
		CreatedAt:          t.createdAt,
	}
	if t.result != nil {
		r := *t.result
		s.Result = &r
	}
	return s
}

// humanInputHandle 一次性可解析信号：channel 只关闭一次
type humanInputHandle struct {
	once  sync.Once
	done  chan struct{}
	value string
}

func newHumanInputHandle() *humanInputHandle {
	return &humanInputHandle{done: make(chan struct{})}
}

func (h *humanInputHandle) resolve(value string) bool {
	resolved := false
	h.once.Do(func() {
		h.value = value
		close(h.done)
		resolved = true
	})
	return resolved
}

func (h *humanInputHandle) Done() <-chan struct{} {
	return h.done
}
