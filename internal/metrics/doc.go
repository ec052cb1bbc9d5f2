// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP、LLM、
Agent、Crew、缓存与记忆后端六个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用
promauto.With 注册到调用方提供的 Registerer（nil 时使用默认
Registry），便于测试与多实例隔离。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram 等向量指标，
    按业务域分组管理。所有 Record 方法对 nil 接收者安全。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，状态码归类为
    2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数与耗时，按 provider/model 分组。
  - Agent 指标：任务终态、推理迭代次数、工具调用结果、人工输入等待
    结果与任务状态转换。
  - Crew 指标：按编排策略统计执行次数与耗时。
  - 缓存指标：命中与未命中计数，按 cache_type 分组。
  - 记忆后端指标：按 backend/operation 统计操作次数与耗时。
*/
package metrics
