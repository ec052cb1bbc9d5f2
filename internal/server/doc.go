// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 crew HTTP API 服务器的生命周期。

# 核心类型

  - Manager：封装 net/http.Server 与 net.Listener，提供 Start、Run、
    Shutdown 以及异步错误通道。
  - Config：监听地址、读写与空闲超时、最大请求头大小、优雅关闭超时，
    可由 config.ServerConfig 通过 ConfigFrom 构造。

# 使用方式

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := server.NewManager(handler, server.ConfigFrom(cfg.Server), logger).Run(ctx)

Run 在 ctx 结束（收到信号）或服务异常退出时执行优雅关闭。
*/
package server
