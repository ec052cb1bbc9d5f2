// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 memory 提供 Agent 使用的记忆后端，全部实现 types.Memory。

# 后端

  - ShortTermMemory：进程内有界 LRU，子串检索，最近使用优先。
  - RedisMemory：Redis 哈希存值、有序集合记录写入顺序，可跨进程共享。
  - LongTermMemory：基于向量索引的语义检索，只接受字符串值。
    索引可选 ChromemIndex（进程内，可持久化到目录）或 QdrantIndex（gRPC）。
  - SQLMemory：GORM 表 memory_entries，支持 sqlite、postgres、mysql。
  - MongoMemory：MongoDB 集合，正则子串检索。

# 检索语义

除 LongTermMemory 外，Search 对键和值做大小写不敏感的子串匹配，空查询
匹配全部，结果按最近写入（或使用）优先，至多 topK 条。

# 工厂

New 根据 config.MemoryConfig 创建后端，namespace 用于在共享存储中隔离
不同 Agent 的数据；WithMetrics 为每次操作记录 Prometheus 指标。
*/
package memory
