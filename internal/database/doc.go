// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接池管理，供 SQL 记忆后端使用。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close() 以及事务辅助方法。
  - PoolConfig：最大空闲连接数、最大打开连接数、连接生命周期与
    健康检查间隔。

# 驱动

Open 根据 config.DatabaseConfig.Driver 选择方言：sqlite（纯 Go 的
glebarez/sqlite）、postgres、mysql。SQLite 连接数固定为 1。

# 事务

WithTransactionRetry 对死锁、序列化失败、SQLite 锁等错误做指数退避重试。
*/
package database
