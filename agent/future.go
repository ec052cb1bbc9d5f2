package agent

import (
	"context"
	"sync"
)

// Future PerformTask 的异步结果
//
// 失败时 Output 仍携带以 "Error: " 开头的诊断文本，err 描述失败原因。
type Future struct {
	once   sync.Once
	done   chan struct{}
	output string
	err    error
}

// NewFuture 创建未完成的 Future
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResolvedFuture 创建已完成的 Future
func ResolvedFuture(output string, err error) *Future {
	f := NewFuture()
	f.Resolve(output, err)
	return f
}

// Async 在新 goroutine 中运行 fn 并以其结果完成 Future
func Async(fn func() (string, error)) *Future {
	f := NewFuture()
	go func() {
		out, err := fn()
		f.Resolve(out, err)
	}()
	return f
}

// Resolve 完成 Future，仅第一次调用生效
func (f *Future) Resolve(output string, err error) bool {
	resolved := false
	f.once.Do(func() {
		f.output = output
		f.err = err
		close(f.done)
		resolved = true
	})
	return resolved
}

// Done 完成时关闭
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await 等待结果；ctx 结束时放弃等待，不影响任务本身
func (f *Future) Await(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.output, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// IsDone 是否已完成
func (f *Future) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
