// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供两级缓存管理能力：进程内 ristretto 作为 L1，
可选的 Redis 作为 L2。

# 概述

Manager 负责两级缓存的生命周期管理，包括初始化、健康检查与优雅关闭。
Get 先查 L1，L2 命中时回填 L1；Set 与 Delete 同时作用于两级。
未配置 Redis 地址时只使用本地缓存。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/Ping/Close。
  - Config：缓存配置，包含本地容量、回填 TTL、Redis 地址、密码、
    连接池大小、默认 TTL 与健康检查间隔。
  - Stats：命中与未命中计数。

# 主要能力

  - 键值读写：值为字节切片，由调用方决定序列化方式。
  - 健康检查：后台定时 Ping Redis，异常时通过 zap 日志告警。
  - 错误语义：提供 ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
