// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
//
// 所有 Record 方法对 nil 接收者安全，未配置指标时可直接传 nil。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	// Agent 指标
	agentTasksTotal       *prometheus.CounterVec
	agentTaskDuration     *prometheus.HistogramVec
	agentIterations       *prometheus.HistogramVec
	agentToolCalls        *prometheus.CounterVec
	agentHumanInputWaits  *prometheus.CounterVec
	agentStateTransitions *prometheus.CounterVec

	// Crew 指标
	crewExecutionsTotal   *prometheus.CounterVec
	crewExecutionDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 记忆后端指标
	memoryOperationsTotal   *prometheus.CounterVec
	memoryOperationDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，reg 为 nil 时注册到默认 Registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// LLM 指标
	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "model"},
	)

	// Agent 指标
	c.agentTasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tasks_total",
			Help:      "Total number of tasks finished by agents",
		},
		[]string{"agent", "status"},
	)

	c.agentTaskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_task_duration_seconds",
			Help:      "Agent task duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	c.agentIterations = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_reasoning_iterations",
			Help:      "Model calls per finished reasoning loop",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"agent"},
	)

	c.agentToolCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_tool_calls_total",
			Help:      "Total number of tool calls by outcome",
		},
		[]string{"agent", "tool", "outcome"}, // outcome: success, error, unknown
	)

	c.agentHumanInputWaits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_human_input_waits_total",
			Help:      "Total number of human input waits by outcome",
		},
		[]string{"agent", "outcome"}, // outcome: requested, resolved, cancelled, timeout
	)

	c.agentStateTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_task_transitions_total",
			Help:      "Total number of task status transitions",
		},
		[]string{"agent", "to_state"},
	)

	// Crew 指标
	c.crewExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crew_executions_total",
			Help:      "Total number of crew executions",
		},
		[]string{"process", "status"},
	)

	c.crewExecutionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "crew_execution_duration_seconds",
			Help:      "Crew execution duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"process"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// 记忆后端指标
	c.memoryOperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_operations_total",
			Help:      "Total number of memory backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	c.memoryOperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memory_operation_duration_seconds",
			Help:      "Memory backend operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// =============================================================================
// 🎭 Agent 指标记录
// =============================================================================

// RecordTask 记录任务终态
func (c *Collector) RecordTask(agent, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.agentTasksTotal.WithLabelValues(agent, status).Inc()
	c.agentTaskDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordIterations 记录一次推理循环的模型调用次数
func (c *Collector) RecordIterations(agent string, iterations int) {
	if c == nil {
		return
	}
	c.agentIterations.WithLabelValues(agent).Observe(float64(iterations))
}

// RecordToolCall 记录工具调用
func (c *Collector) RecordToolCall(agent, tool, outcome string) {
	if c == nil {
		return
	}
	c.agentToolCalls.WithLabelValues(agent, tool, outcome).Inc()
}

// RecordHumanInputWait 记录人工输入等待
func (c *Collector) RecordHumanInputWait(agent, outcome string) {
	if c == nil {
		return
	}
	c.agentHumanInputWaits.WithLabelValues(agent, outcome).Inc()
}

// RecordTaskTransition 记录任务状态转换
func (c *Collector) RecordTaskTransition(agent, toState string) {
	if c == nil {
		return
	}
	c.agentStateTransitions.WithLabelValues(agent, toState).Inc()
}

// =============================================================================
// 👥 Crew 指标记录
// =============================================================================

// RecordCrewExecution 记录 Crew 执行
func (c *Collector) RecordCrewExecution(process, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.crewExecutionsTotal.WithLabelValues(process, status).Inc()
	c.crewExecutionDuration.WithLabelValues(process).Observe(duration.Seconds())
}

// =============================================================================
// 💾 缓存指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// =============================================================================
// 🗄️ 记忆后端指标记录
// =============================================================================

// RecordMemoryOperation 记录记忆后端操作
func (c *Collector) RecordMemoryOperation(backend, operation string, err error, duration time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.memoryOperationsTotal.WithLabelValues(backend, operation, status).Inc()
	c.memoryOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
