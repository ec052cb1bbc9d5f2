/*
Package handlers 提供 agentcrew HTTP API 的请求处理器实现。

# 概述

handlers 包实现 Crew 服务的 HTTP 端点：提交与查询运行、人工输入
请求的查询与提交、运行事件的 WebSocket 推送，以及健康检查。
所有 Handler 均遵循标准 net/http 接口，路由使用 Go 1.22 的
"METHOD /path/{param}" 模式。

# 核心类型

  - ExecutionHandler: POST /v1/executions 提交任务（wait 时同步返回结果），
    GET /v1/executions[/{id}] 查询运行；运行记录保存在 LRU 中
  - HITLHandler: GET /v1/hitl/requests 列出请求，
    POST /v1/hitl/requests/{taskID} 提交人工输入
  - EventsHandler: GET /v1/events WebSocket 事件流，可按 run_id 过滤
  - HealthHandler: /health、/ready、/version
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）

# 错误处理

WriteError 将 types.ErrorCode 映射为 HTTP 状态码；DecodeJSONBody
限制请求体 1 MB 并拒绝未知字段。
*/
package handlers
