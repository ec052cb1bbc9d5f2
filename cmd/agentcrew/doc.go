/*
Package main 提供 agentcrew 命令行程序入口。

# 概述

cmd/agentcrew 是多 Agent 编排引擎的可执行入口：run 子命令按配置
组装 Crew 并执行单个任务，serve 子命令暴露 HTTP API。程序支持 YAML
配置加载（环境变量前缀 AGENTCREW_）、结构化日志（zap）、Prometheus
指标以及 OpenTelemetry 链路追踪。

# 核心类型

  - Server: 组装编排实例、路由与中间件，托管 HTTP 生命周期
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler
  - statusRecorder: 捕获状态码并透传 Flush/Hijack

# 主要能力

  - 子命令：run（执行单个任务）、serve（启动服务）、health、version
  - 中间件链：RequestID、Recovery、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、JWTAuth（HS256 Bearer）
  - run 模式下人工输入请求在终端提示并从 stdin 读取
  - 优雅关闭：信号 → 关闭 HTTP → 取消运行 → 关闭 Crew 与外部连接 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
