// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 agentcrew 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、tools、
agent/memory 以及 api 等上层模块提供统一的类型契约，避免循环依赖。

# 核心接口与类型

  - Tool: Agent 可调用的工具（名称、描述、参数说明、Use）
  - ToolCall: 从模型响应解析出的工具调用
  - Memory: 键值 + 语义检索记忆契约
  - Error / ErrorCode: 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记

# 主要能力

  - Context 传播：WithTraceID / WithRunID / WithTaskID / WithAgentName / WithSubject
  - 错误工具链：AsError / IsErrorCode / IsRetryable / ErrorCodeForHTTPStatus
*/
package types
