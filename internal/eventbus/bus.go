package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/BaSui01/agentcrew/agent"
	"go.uber.org/zap"
)

// DefaultBufferSize 订阅缓冲默认大小
const DefaultBufferSize = 256

// Filter 订阅过滤条件，返回 true 的事件才会投递
type Filter func(agent.Event) bool

// ForRun 只投递指定运行的事件
func ForRun(runID string) Filter {
	return func(e agent.Event) bool { return e.RunID == runID }
}

// Bus 进程内事件总线，同时转发到附加的 sink
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	sinks  []agent.EventSink
	nextID uint64
	closed bool
	logger *zap.Logger
}

var _ agent.EventSink = (*Bus)(nil)

// NewBus 创建事件总线
func NewBus(logger *zap.Logger, sinks ...agent.EventSink) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		sinks:  sinks,
		logger: logger.With(zap.String("component", "event_bus")),
	}
}

// Publish 投递给所有订阅与 sink，不阻塞
func (b *Bus) Publish(e agent.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, s := range b.subs {
		s.deliver(e)
	}
	for _, sink := range b.sinks {
		sink.Publish(e)
	}
}

// Subscribe 新建订阅，buffer <= 0 时使用默认大小，filter 可为 nil
func (b *Bus) Subscribe(buffer int, filter Filter) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		bus:    b,
		ch:     make(chan agent.Event, buffer),
		filter: filter,
	}
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s.id] = s
	return s
}

// Subscribers 当前订阅数
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭总线与所有订阅通道，之后的 Publish 被忽略
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, s := range b.subs {
		delete(b.subs, id)
		close(s.ch)
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	close(s.ch)
	if n := s.dropped.Load(); n > 0 {
		b.logger.Debug("subscription closed with dropped events", zap.Uint64("subscription", s.id), zap.Int64("dropped", n))
	}
}

// Subscription 单个订阅
type Subscription struct {
	id      uint64
	bus     *Bus
	ch      chan agent.Event
	filter  Filter
	dropped atomic.Int64
}

// Events 事件通道，订阅或总线关闭后被关闭
func (s *Subscription) Events() <-chan agent.Event { return s.ch }

// Dropped 因缓冲已满丢弃的事件数
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close 取消订阅，可重复调用
func (s *Subscription) Close() { s.bus.remove(s) }

// deliver 调用方持有总线读锁
func (s *Subscription) deliver(e agent.Event) {
	if s.filter != nil && !s.filter(e) {
		return
	}
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}
