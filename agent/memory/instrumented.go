package memory

import (
	"context"
	"io"
	"time"

	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/BaSui01/agentcrew/types"
)

// Instrumented 记录每次记忆操作的次数与耗时
type Instrumented struct {
	next      types.Memory
	backend   string
	collector *metrics.Collector
}

// NewInstrumented 包装记忆后端，collector 为 nil 时不记录
func NewInstrumented(next types.Memory, backend string, collector *metrics.Collector) *Instrumented {
	return &Instrumented{next: next, backend: backend, collector: collector}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	i.collector.RecordMemoryOperation(i.backend, op, err, time.Since(start))
}

// Add 实现 types.Memory
func (i *Instrumented) Add(ctx context.Context, key string, value any) error {
	start := time.Now()
	err := i.next.Add(ctx, key, value)
	i.observe("add", start, err)
	return err
}

// AddAll 实现 types.Memory
func (i *Instrumented) AddAll(ctx context.Context, values map[string]any) error {
	start := time.Now()
	err := i.next.AddAll(ctx, values)
	i.observe("add_all", start, err)
	return err
}

// Get 实现 types.Memory
func (i *Instrumented) Get(ctx context.Context, key string) (any, bool, error) {
	start := time.Now()
	v, ok, err := i.next.Get(ctx, key)
	i.observe("get", start, err)
	return v, ok, err
}

// Search 实现 types.Memory
func (i *Instrumented) Search(ctx context.Context, query string, topK int) ([]any, error) {
	start := time.Now()
	out, err := i.next.Search(ctx, query, topK)
	i.observe("search", start, err)
	return out, err
}

// Clear 实现 types.Memory
func (i *Instrumented) Clear(ctx context.Context) error {
	start := time.Now()
	err := i.next.Clear(ctx)
	i.observe("clear", start, err)
	return err
}

// Close 关闭被包装的后端（如果支持）
func (i *Instrumented) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap 返回被包装的后端
func (i *Instrumented) Unwrap() types.Memory { return i.next }
