package tools

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/BaSui01/agentcrew/types"
	"go.uber.org/zap"
)

var (
	// ErrInvalidParameters 工具参数缺失或类型错误
	ErrInvalidParameters = errors.New("invalid tool parameters")
	// ErrToolNotFound 注册表中没有该名称
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolExists 名称已注册
	ErrToolExists = errors.New("tool already registered")
)

// Factory 构造一个工具实例
type Factory func() types.Tool

// Registry 工具名称到构造函数的映射
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *zap.Logger
}

// NewRegistry 创建空注册表
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With(zap.String("component", "tool_registry")),
	}
}

// NewDefaultRegistry 创建包含内置工具的注册表
func NewDefaultRegistry(logger *zap.Logger) *Registry {
	r := NewRegistry(logger)
	_ = r.Register(EchoToolName, func() types.Tool { return NewEchoTool() })
	_ = r.Register(ClockToolName, func() types.Tool { return NewClockTool(nil) })
	_ = r.Register(PDFReaderToolName, func() types.Tool { return NewPDFReaderTool("") })
	_ = r.Register(PDFWriterToolName, func() types.Tool { return NewPDFWriterTool("") })
	return r
}

// Register 注册工具构造函数
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidParameters)
	}
	if factory == nil {
		return fmt.Errorf("%w: factory for %s is nil", ErrInvalidParameters, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}
	r.factories[name] = factory

	r.logger.Debug("tool registered", zap.String("name", name))
	return nil
}

// Unregister 移除工具
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; !exists {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	delete(r.factories, name)
	return nil
}

// Has 是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Names 已注册名称，按字母序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build 按名称构造工具，保持传入顺序；任一名称未注册时返回错误
func (r *Registry) Build(names ...string) ([]types.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.Tool, 0, len(names))
	for _, name := range names {
		factory, ok := r.factories[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
		}
		tool := factory()
		if tool.Name() != name {
			return nil, fmt.Errorf("tool name mismatch: factory for %s built %s", name, tool.Name())
		}
		result = append(result, tool)
	}
	return result, nil
}
