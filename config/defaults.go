// =============================================================================
// 📦 AgentCrew 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Crew:      DefaultCrewConfig(),
		Agents:    []AgentConfig{DefaultAgentConfig()},
		LLM:       DefaultLLMConfig(),
		Memory:    DefaultMemoryConfig(),
		Events:    DefaultEventsConfig(),
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// DefaultCrewConfig 返回默认编排配置
func DefaultCrewConfig() CrewConfig {
	return CrewConfig{
		Name:    "default-crew",
		Process: "sequential",
	}
}

// DefaultAgentConfig 返回默认 Agent 配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Name:          "assistant",
		Role:          "a helpful assistant",
		Tools:         []string{"echo"},
		MaxIterations: 5,
		MemoryTopK:    3,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:       "openai",
		Timeout:        2 * time.Minute,
		MaxTokens:      1024,
		Temperature:    0.7,
		MaxRetries:     2,
		RateLimitBurst: 1,
		Cache: LLMCacheConfig{
			Enabled:      false,
			TTL:          10 * time.Minute,
			LocalMaxCost: 64 << 20,
		},
	}
}

// DefaultMemoryConfig 返回默认记忆配置
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Type:     "short_term",
		Capacity: 100,
		Redis:    DefaultRedisConfig(),
		Vector:   DefaultVectorConfig(),
		SQL:      DefaultDatabaseConfig(),
		Mongo:    DefaultMongoConfig(),
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "agentcrew:memory",
	}
}

// DefaultVectorConfig 返回默认向量存储配置
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Store:      "chromem",
		Embedder:   "hash",
		Dimension:  256,
		Collection: "agentcrew",
		Qdrant:     DefaultQdrantConfig(),
	}
}

// DefaultQdrantConfig 返回默认 Qdrant 配置
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host: "localhost",
		Port: 6334,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "agentcrew",
		Password:        "",
		Name:            "agentcrew.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "agentcrew",
		Collection: "memory_entries",
	}
}

// DefaultEventsConfig 返回默认事件配置
func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		SubjectPrefix: "agentcrew",
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentcrew",
		SampleRate:   0.1,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "agentcrew",
	}
}
