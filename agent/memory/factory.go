package memory

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/BaSui01/agentcrew/config"
	"github.com/BaSui01/agentcrew/internal/database"
	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/BaSui01/agentcrew/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 记忆类型
const (
	TypeShortTerm = "short_term"
	TypeRedis     = "redis"
	TypeLongTerm  = "long_term"
	TypeSQL       = "sql"
	TypeMongo     = "mongo"
)

// openAIEmbeddingDimension text-embedding-3-small 的输出维度
const openAIEmbeddingDimension = 1536

// Option 工厂选项
type Option func(*factoryOptions)

type factoryOptions struct {
	collector *metrics.Collector
	redis     *redis.Client
	db        *database.PoolManager
}

// WithMetrics 为返回的记忆包装指标记录
func WithMetrics(c *metrics.Collector) Option {
	return func(o *factoryOptions) { o.collector = c }
}

// WithRedisClient 复用 Redis 客户端，生命周期由调用方负责
func WithRedisClient(c *redis.Client) Option {
	return func(o *factoryOptions) { o.redis = c }
}

// WithDatabase 复用数据库连接池，生命周期由调用方负责
func WithDatabase(pm *database.PoolManager) Option {
	return func(o *factoryOptions) { o.db = pm }
}

// New 按配置创建记忆后端
//
// namespace 通常为 Agent 名称，用于在共享存储中隔离数据。返回值若实现
// io.Closer，调用方负责关闭。
func New(ctx context.Context, cfg config.MemoryConfig, namespace string, logger *zap.Logger, opts ...Option) (types.Memory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	typ := cfg.Type
	if typ == "" {
		typ = TypeShortTerm
	}

	mem, err := build(ctx, typ, cfg, namespace, logger, o)
	if err != nil {
		return nil, fmt.Errorf("create %s memory: %w", typ, err)
	}
	logger.Debug("memory ready", zap.String("type", typ), zap.String("namespace", namespace))

	if o.collector != nil {
		return NewInstrumented(mem, typ, o.collector), nil
	}
	return mem, nil
}

func build(ctx context.Context, typ string, cfg config.MemoryConfig, namespace string, logger *zap.Logger, o *factoryOptions) (types.Memory, error) {
	switch typ {
	case TypeShortTerm:
		return NewShortTermMemory(cfg.Capacity), nil

	case TypeRedis:
		client := o.redis
		if client == nil {
			client = redis.NewClient(&redis.Options{
				Addr:         cfg.Redis.Addr,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				PoolSize:     cfg.Redis.PoolSize,
				MinIdleConns: cfg.Redis.MinIdleConns,
			})
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("ping redis: %w", err)
			}
			return NewRedisMemory(client, cfg.Redis.KeyPrefix+":"+namespace, logger), nil
		}
		return &sharedRedisMemory{NewRedisMemory(client, cfg.Redis.KeyPrefix+":"+namespace, logger)}, nil

	case TypeLongTerm:
		index, err := newVectorIndex(ctx, cfg.Vector, namespace)
		if err != nil {
			return nil, err
		}
		return NewLongTermMemory(index), nil

	case TypeSQL:
		pm, owned := o.db, false
		if pm == nil {
			var err error
			if pm, err = database.Open(cfg.SQL, logger); err != nil {
				return nil, err
			}
			owned = true
		}
		m := NewSQLMemory(pm, namespace, logger)
		m.owned = owned
		if err := m.Migrate(ctx); err != nil {
			_ = m.Close()
			return nil, err
		}
		return m, nil

	case TypeMongo:
		client, err := ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		m := NewMongoMemory(client, cfg.Mongo.Database, cfg.Mongo.Collection, namespace, logger)
		if err := m.EnsureIndexes(ctx); err != nil {
			_ = m.Close()
			return nil, err
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown memory type %q", typ)
	}
}

// newVectorIndex 按配置选择向量索引与向量化方式
func newVectorIndex(ctx context.Context, cfg config.VectorConfig, namespace string) (VectorIndex, error) {
	var embed EmbeddingFunc
	dim := cfg.Dimension
	switch cfg.Embedder {
	case "openai":
		embed = NewOpenAIEmbedder(config.ResolveAPIKey("openai", cfg.EmbeddingAPIKey))
		dim = openAIEmbeddingDimension
	case "hash", "":
		embed = NewHashEmbedder(cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}

	collection := cfg.Collection
	if namespace != "" {
		collection += "_" + namespace
	}

	switch cfg.Store {
	case "chromem", "":
		cc := ChromemConfig{Collection: collection, Compress: cfg.Compress, Embedder: embed}
		if cfg.PersistPath != "" {
			cc.PersistPath = filepath.Join(cfg.PersistPath, namespace)
		}
		return NewChromemIndex(cc)
	case "qdrant":
		return NewQdrantIndex(ctx, QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: collection,
			Dimension:  dim,
			Embedder:   embed,
		})
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.Store)
	}
}

// sharedRedisMemory 使用外部客户端，Close 不关闭连接
type sharedRedisMemory struct {
	*RedisMemory
}

// Close 不关闭共享客户端
func (sharedRedisMemory) Close() error { return nil }
