package agent

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogEntry 执行日志条目
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String 格式化为 "[时间] 消息"
func (e LogEntry) String() string {
	return fmt.Sprintf("[%s] %s", e.Time.Format(time.RFC3339Nano), e.Message)
}

// ExecutionContext 一次 Crew 运行的共享状态
//
// 包含全局共享内存、按任务 ID 划分的任务内存以及只追加的时间戳日志。
// 共享内存后写覆盖；日志在并发追加下保持插入顺序。
type ExecutionContext struct {
	runID    string
	logger   *zap.Logger
	notifier HumanInputNotifier
	sink     EventSink

	mu       sync.RWMutex
	shared   map[string]any
	taskData map[string]map[string]any

	logMu sync.RWMutex
	logs  []LogEntry
}

// ContextOption 执行上下文选项
type ContextOption func(*ExecutionContext)

// WithRunID 指定运行 ID（默认生成 UUID）
func WithRunID(runID string) ContextOption {
	return func(ec *ExecutionContext) {
		if runID != "" {
			ec.runID = runID
		}
	}
}

// WithContextLogger 日志同时输出到 zap（debug 级别）
func WithContextLogger(logger *zap.Logger) ContextOption {
	return func(ec *ExecutionContext) {
		if logger != nil {
			ec.logger = logger
		}
	}
}

// WithHumanInputNotifier 任务等待人工输入时通知
func WithHumanInputNotifier(n HumanInputNotifier) ContextOption {
	return func(ec *ExecutionContext) { ec.notifier = n }
}

// WithEventSink 发布运行事件
func WithEventSink(sink EventSink) ContextOption {
	return func(ec *ExecutionContext) { ec.sink = sink }
}

// NewExecutionContext 创建执行上下文
func NewExecutionContext(opts ...ContextOption) *ExecutionContext {
	ec := &ExecutionContext{
		runID:    uuid.NewString(),
		logger:   zap.NewNop(),
		shared:   make(map[string]any),
		taskData: make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(ec)
	}
	ec.logger = ec.logger.With(zap.String("run_id", ec.runID))
	return ec
}

// RunID 运行 ID
func (ec *ExecutionContext) RunID() string {
	return ec.runID
}

// =============================================================================
// 共享内存
// =============================================================================

// SetShared 写入共享内存
func (ec *ExecutionContext) SetShared(key string, value any) {
	ec.mu.Lock()
	ec.shared[key] = value
	ec.mu.Unlock()
}

// Shared 读取共享内存
func (ec *ExecutionContext) Shared(key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.shared[key]
	return v, ok
}

// SharedSnapshot 共享内存快照
func (ec *ExecutionContext) SharedSnapshot() map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return maps.Clone(ec.shared)
}

// ClearShared 清空共享内存
func (ec *ExecutionContext) ClearShared() {
	ec.mu.Lock()
	clear(ec.shared)
	ec.mu.Unlock()
}

// =============================================================================
// 任务内存
// =============================================================================

// SetTaskData 写入任务内存
func (ec *ExecutionContext) SetTaskData(taskID, key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	data, ok := ec.taskData[taskID]
	if !ok {
		data = make(map[string]any)
		ec.taskData[taskID] = data
	}
	data[key] = value
}

// TaskData 读取任务内存
func (ec *ExecutionContext) TaskData(taskID, key string) (any, bool) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	v, ok := ec.taskData[taskID][key]
	return v, ok
}

// TaskDataSnapshot 某个任务内存的快照
func (ec *ExecutionContext) TaskDataSnapshot(taskID string) map[string]any {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	return maps.Clone(ec.taskData[taskID])
}

// TaskIDs 已写入任务内存的任务 ID
func (ec *ExecutionContext) TaskIDs() []string {
	ec.mu.RLock()
	defer ec.mu.RUnlock()
	ids := make([]string, 0, len(ec.taskData))
	for id := range ec.taskData {
		ids = append(ids, id)
	}
	return ids
}

// ClearTaskData 删除某个任务的内存
func (ec *ExecutionContext) ClearTaskData(taskID string) {
	ec.mu.Lock()
	delete(ec.taskData, taskID)
	ec.mu.Unlock()
}

// =============================================================================
// 日志
// =============================================================================

// Log 追加日志
//
// 日志事件在追加的临界区内发布，事件流与 Logs 的顺序一致；
// EventSink.Publish 不得阻塞，也不得回调 Log。
func (ec *ExecutionContext) Log(message string) {
	ec.logger.Debug(message)

	ec.logMu.Lock()
	defer ec.logMu.Unlock()
	entry := LogEntry{Time: time.Now(), Message: message}
	ec.logs = append(ec.logs, entry)
	ec.publish(Event{Type: EventLog, Message: message, Timestamp: entry.Time})
}

// Logf 格式化追加日志
func (ec *ExecutionContext) Logf(format string, args ...any) {
	ec.Log(fmt.Sprintf(format, args...))
}

// Logs 日志副本，按追加顺序
func (ec *ExecutionContext) Logs() []LogEntry {
	ec.logMu.RLock()
	defer ec.logMu.RUnlock()
	out := make([]LogEntry, len(ec.logs))
	copy(out, ec.logs)
	return out
}

// ClearLogs 清空日志
func (ec *ExecutionContext) ClearLogs() {
	ec.logMu.Lock()
	ec.logs = nil
	ec.logMu.Unlock()
}

// =============================================================================
// 事件与人工输入通知
// =============================================================================

// RecordStatus 发布任务当前状态
func (ec *ExecutionContext) RecordStatus(task *Task) {
	ec.publish(Event{
		Type:      EventTaskStatus,
		TaskID:    task.ID(),
		Agent:     task.AssignedAgent(),
		Status:    task.Status(),
		Message:   task.Description(),
		Timestamp: time.Now(),
	})
}

func (ec *ExecutionContext) publish(e Event) {
	if ec.sink == nil {
		return
	}
	e.RunID = ec.runID
	ec.sink.Publish(e)
}

func (ec *ExecutionContext) humanInputRequested(task *Task, agentName string) {
	ec.publish(Event{
		Type:      EventHumanInputRequested,
		TaskID:    task.ID(),
		Agent:     agentName,
		Status:    StatusAwaitingHumanInput,
		Message:   task.Description(),
		Timestamp: time.Now(),
	})
	if ec.notifier != nil {
		ec.notifier.HumanInputRequested(ec.runID, task, agentName)
	}
}

func (ec *ExecutionContext) humanInputSettled(task *Task) {
	if ec.notifier != nil {
		ec.notifier.HumanInputSettled(task)
	}
}
