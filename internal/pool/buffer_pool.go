package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool is a generic object pool.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)

	gets atomic.Int64
	news atomic.Int64
}

// NewPool creates a new object pool.
func NewPool[T any](newFunc func() T, resetFunc func(*T)) *Pool[T] {
	p := &Pool[T]{reset: resetFunc}
	p.pool.New = func() any {
		p.news.Add(1)
		return newFunc()
	}
	return p
}

// Get retrieves an object from the pool.
func (p *Pool[T]) Get() T {
	p.gets.Add(1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(&obj)
	}
	p.pool.Put(obj)
}

// HitRate returns the fraction of Get calls served without allocation.
func (p *Pool[T]) HitRate() float64 {
	gets := p.gets.Load()
	if gets == 0 {
		return 0
	}
	return float64(gets-p.news.Load()) / float64(gets)
}

// 超过该容量的 buffer 不回收，避免长 prompt 长期占用内存
const maxPooledBufferSize = 1 << 20

// ByteBufferPool provides pooled byte buffers for prompt and request assembly.
var ByteBufferPool = NewPool(
	func() *bytes.Buffer {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
	func(b **bytes.Buffer) {
		if (*b).Cap() > maxPooledBufferSize {
			*b = bytes.NewBuffer(make([]byte, 0, 4096))
			return
		}
		(*b).Reset()
	},
)
