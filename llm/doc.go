// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供模型后端接入层：统一的 Completer 契约以及限流、
缓存、可观测等可组合包装。

# 概述

编排引擎只依赖 [Completer]：给定 prompt，返回模型的原始文本响应。
具体服务商实现位于 llm/providers 子包，按名称创建后端并套用包装
的逻辑位于 llm/factory。

# 核心类型

  - [Completer]：模型后端契约。
  - [CompleterFunc]：函数适配器，便于测试与内联实现。
  - [EchoCompleter]：离线后端，回显 prompt 中的任务描述。
  - [RateLimited]：基于 golang.org/x/time/rate 的限流包装。
  - [Cached]：基于 internal/cache 两级缓存的补全结果缓存。
  - [Instrumented]：记录 Prometheus 指标与 OpenTelemetry span。

# 组合顺序

factory 按 Instrumented(Cached(RateLimited(provider))) 的顺序组合，
缓存命中不消耗限流令牌，且每次调用都会被观测。
*/
package llm
