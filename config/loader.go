// =============================================================================
// 📦 AgentCrew 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("crew.yaml").
//	    WithEnvPrefix("AGENTCREW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量 → API Key 约定环境变量兜底
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 AgentCrew 的完整配置结构
type Config struct {
	// Crew 编排配置
	Crew CrewConfig `yaml:"crew" env:"CREW"`

	// Agents Agent 列表（只能通过 YAML 配置）
	Agents []AgentConfig `yaml:"agents" env:"-"`

	// LLM 模型后端配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Memory 记忆后端配置
	Memory MemoryConfig `yaml:"memory" env:"MEMORY"`

	// Events 事件发布配置
	Events EventsConfig `yaml:"events" env:"EVENTS"`

	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// CrewConfig 编排配置
type CrewConfig struct {
	// 名称
	Name string `yaml:"name" env:"NAME"`
	// 编排策略: sequential, hierarchical, consensual
	Process string `yaml:"process" env:"PROCESS"`
	// 顺序策略下每一跳都触发原始任务回调
	PerHopCallbacks bool `yaml:"per_hop_callbacks" env:"PER_HOP_CALLBACKS"`
}

// AgentConfig 单个推理 Agent 的配置
type AgentConfig struct {
	// 名称（在 Crew 内唯一）
	Name string `yaml:"name"`
	// 角色描述
	Role string `yaml:"role"`
	// 工具名称列表，见 tools.Registry
	Tools []string `yaml:"tools"`
	// 最大迭代次数
	MaxIterations int `yaml:"max_iterations"`
	// 工作池大小
	PoolSize int `yaml:"pool_size"`
	// 工作池队列长度
	QueueSize int `yaml:"queue_size"`
	// 每次构建 prompt 检索的记忆条数
	MemoryTopK int `yaml:"memory_top_k"`
	// 人工输入等待超时，0 表示无限等待
	HumanInputTimeout time.Duration `yaml:"human_input_timeout"`
	// prompt 的 token 上限（tiktoken 计数），0 表示不限制
	PromptTokenBudget int `yaml:"prompt_token_budget"`
}

// LLMConfig 模型后端配置
type LLMConfig struct {
	// Provider: openai, groq, anthropic, claude, gemini, echo
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key，为空时回退到 {PROVIDER}_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 模型名称
	Model string `yaml:"model" env:"MODEL"`
	// 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 最大 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
	// 温度参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	// 最大重试次数（仅 SDK 类 Provider）
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 每秒请求数限制，0 表示不限流
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// 补全缓存
	Cache LLMCacheConfig `yaml:"cache" env:"CACHE"`
}

// LLMCacheConfig 补全结果缓存配置
type LLMCacheConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 过期时间
	TTL time.Duration `yaml:"ttl" env:"TTL"`
	// 本地缓存容量（字节）
	LocalMaxCost int64 `yaml:"local_max_cost" env:"LOCAL_MAX_COST"`
	// Redis 地址，为空时只用本地缓存
	RedisAddr string `yaml:"redis_addr" env:"REDIS_ADDR"`
}

// MemoryConfig 记忆后端配置
type MemoryConfig struct {
	// 类型: short_term, redis, long_term, sql, mongo
	Type string `yaml:"type" env:"TYPE"`
	// 短期记忆容量
	Capacity int `yaml:"capacity" env:"CAPACITY"`
	// Redis 配置
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
	// 向量存储配置
	Vector VectorConfig `yaml:"vector" env:"VECTOR"`
	// 关系型数据库配置
	SQL DatabaseConfig `yaml:"sql" env:"SQL"`
	// MongoDB 配置
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 键前缀
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// VectorConfig 长期记忆向量存储配置
type VectorConfig struct {
	// 存储: chromem, qdrant
	Store string `yaml:"store" env:"STORE"`
	// chromem 持久化目录，为空时仅内存
	PersistPath string `yaml:"persist_path" env:"PERSIST_PATH"`
	// chromem 持久化是否压缩
	Compress bool `yaml:"compress" env:"COMPRESS"`
	// Embedder: hash, openai
	Embedder string `yaml:"embedder" env:"EMBEDDER"`
	// 向量维度（hash embedder 与 qdrant 集合）
	Dimension int `yaml:"dimension" env:"DIMENSION"`
	// OpenAI embedding API Key，为空时回退到 OPENAI_API_KEY
	EmbeddingAPIKey string `yaml:"embedding_api_key" env:"EMBEDDING_API_KEY"`
	// 集合名前缀
	Collection string `yaml:"collection" env:"COLLECTION"`
	// Qdrant 配置
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`
}

// QdrantConfig Qdrant 向量存储配置
type QdrantConfig struct {
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// gRPC 端口
	Port int `yaml:"port" env:"PORT"`
	// API Key（可选）
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 是否启用 TLS
	UseTLS bool `yaml:"use_tls" env:"USE_TLS"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名（sqlite 为文件路径）
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	// 连接 URI
	URI string `yaml:"uri" env:"URI"`
	// 数据库名
	Database string `yaml:"database" env:"DATABASE"`
	// 集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
}

// EventsConfig 事件发布配置
type EventsConfig struct {
	// NATS 地址，为空时不发布到 NATS
	NATSURL string `yaml:"nats_url" env:"NATS_URL"`
	// 主题前缀
	SubjectPrefix string `yaml:"subject_prefix" env:"SUBJECT_PREFIX"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// JWT 认证
	JWT JWTConfig `yaml:"jwt" env:"JWT"`
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// HMAC 密钥
	Secret string `yaml:"secret" env:"SECRET"`
	// 签发者（可选）
	Issuer string `yaml:"issuer" env:"ISSUER"`
	// 受众（可选）
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "AGENTCREW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. API Key 兜底
	cfg.LLM.APIKey = ResolveAPIKey(cfg.LLM.Provider, cfg.LLM.APIKey)

	// 5. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// ResolveAPIKey 显式 Key 优先，否则读取 Provider 约定的环境变量
//
// openai → OPENAI_API_KEY，groq → GROQ_API_KEY，gemini → GEMINI_API_KEY，anthropic/claude →
// ANTHROPIC_API_KEY。echo 不需要 Key。
func ResolveAPIKey(provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	switch strings.ToLower(provider) {
	case "", "echo":
		return ""
	case "claude", "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	default:
		return os.Getenv(strings.ToUpper(provider) + "_API_KEY")
	}
}

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

var (
	validProcesses = map[string]bool{"sequential": true, "hierarchical": true, "consensual": true}
	validProviders = map[string]bool{"openai": true, "groq": true, "anthropic": true, "claude": true, "gemini": true, "echo": true}
	validMemories  = map[string]bool{"short_term": true, "redis": true, "long_term": true, "sql": true, "mongo": true}
)

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证 Crew 配置
	if !validProcesses[c.Crew.Process] {
		errs = append(errs, fmt.Sprintf("unknown crew process %q", c.Crew.Process))
	}

	// 验证 Agent 配置
	if len(c.Agents) == 0 {
		errs = append(errs, "at least one agent is required")
	}
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if strings.TrimSpace(a.Name) == "" {
			errs = append(errs, fmt.Sprintf("agents[%d]: name is required", i))
			continue
		}
		if seen[a.Name] {
			errs = append(errs, fmt.Sprintf("agents[%d]: duplicate name %q", i, a.Name))
		}
		seen[a.Name] = true
		if a.MaxIterations < 0 || a.PoolSize < 0 || a.QueueSize < 0 || a.MemoryTopK < 0 || a.HumanInputTimeout < 0 || a.PromptTokenBudget < 0 {
			errs = append(errs, fmt.Sprintf("agents[%d]: numeric settings must not be negative", i))
		}
	}

	// 验证 LLM 配置
	if !validProviders[c.LLM.Provider] {
		errs = append(errs, fmt.Sprintf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}

	// 验证记忆配置
	if !validMemories[c.Memory.Type] {
		errs = append(errs, fmt.Sprintf("unknown memory type %q", c.Memory.Type))
	}

	// 验证服务器配置
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.JWT.Enabled && c.Server.JWT.Secret == "" {
		errs = append(errs, "jwt secret is required when jwt is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
