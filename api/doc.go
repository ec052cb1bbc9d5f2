// Package api 定义 agentcrew HTTP API 的请求与响应类型。
//
// # API 概览
//
//	POST /v1/executions               提交任务，wait=true 时返回最终结果
//	GET  /v1/executions               列出最近的运行
//	GET  /v1/executions/{id}          查询运行状态与结果
//	GET  /v1/hitl/requests            列出人工输入请求（?status=pending|resolved|cancelled|all）
//	GET  /v1/hitl/requests/{taskID}   查询单个请求
//	POST /v1/hitl/requests/{taskID}   提交人工输入
//	GET  /v1/events                   WebSocket 事件流（?run_id=...）
//	GET  /health, /ready, /version    健康检查
//	GET  /metrics                     Prometheus 指标
//
// # 认证
//
// 启用 server.jwt 后，除健康检查与指标外的端点需要 Bearer Token：
//
//	Authorization: Bearer <token>
//
// 所有响应使用统一结构：
//
//	{"success": true, "data": {...}, "timestamp": "..."}
package api
