package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// searchBatch Search 每批从索引读取的键数
const searchBatch = 100

// RedisMemory 基于 Redis 的共享记忆
//
// 值以 JSON 存入 {prefix}:values 哈希，{prefix}:index 有序集合按写入序号
// 记录最近写入顺序。Search 语义与 ShortTermMemory 一致。
type RedisMemory struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisMemory 创建 Redis 记忆，prefix 隔离不同 Agent 的数据
func NewRedisMemory(client *redis.Client, prefix string, logger *zap.Logger) *RedisMemory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "agentcrew:memory"
	}
	return &RedisMemory{
		client: client,
		prefix: prefix,
		logger: logger.With(zap.String("component", "memory_redis"), zap.String("prefix", prefix)),
	}
}

func (m *RedisMemory) valuesKey() string { return m.prefix + ":values" }
func (m *RedisMemory) indexKey() string  { return m.prefix + ":index" }
func (m *RedisMemory) seqKey() string    { return m.prefix + ":seq" }

// Add 写入条目
func (m *RedisMemory) Add(ctx context.Context, key string, value any) error {
	return m.AddAll(ctx, map[string]any{key: value})
}

// AddAll 在一个事务中批量写入
func (m *RedisMemory) AddAll(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		if k == "" {
			return ErrKeyRequired
		}
		data, err := encodeValue(v)
		if err != nil {
			return err
		}
		encoded[k] = data
	}

	last, err := m.client.IncrBy(ctx, m.seqKey(), int64(len(encoded))).Result()
	if err != nil {
		return fmt.Errorf("redis memory seq: %w", err)
	}
	seq := last - int64(len(encoded))

	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, data := range encoded {
			seq++
			pipe.HSet(ctx, m.valuesKey(), k, data)
			pipe.ZAdd(ctx, m.indexKey(), redis.Z{Score: float64(seq), Member: k})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis memory add: %w", err)
	}
	return nil
}

// Get 读取条目
func (m *RedisMemory) Get(ctx context.Context, key string) (any, bool, error) {
	data, err := m.client.HGet(ctx, m.valuesKey(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis memory get: %w", err)
	}
	v, err := decodeValue(data)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Search 子串匹配，最近写入优先
func (m *RedisMemory) Search(ctx context.Context, query string, topK int) ([]any, error) {
	if topK <= 0 {
		return nil, nil
	}

	var out []any
	for start := int64(0); len(out) < topK; start += searchBatch {
		keys, err := m.client.ZRevRange(ctx, m.indexKey(), start, start+searchBatch-1).Result()
		if err != nil {
			return nil, fmt.Errorf("redis memory search: %w", err)
		}
		if len(keys) == 0 {
			break
		}
		raw, err := m.client.HMGet(ctx, m.valuesKey(), keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("redis memory search: %w", err)
		}
		for i, r := range raw {
			s, ok := r.(string)
			if !ok {
				continue
			}
			v, err := decodeValue([]byte(s))
			if err != nil {
				m.logger.Warn("skipping undecodable entry", zap.String("key", keys[i]), zap.Error(err))
				continue
			}
			if matches(query, keys[i], v) {
				out = append(out, v)
				if len(out) == topK {
					break
				}
			}
		}
		if len(keys) < searchBatch {
			break
		}
	}
	return out, nil
}

// Clear 删除该前缀下的全部数据
func (m *RedisMemory) Clear(ctx context.Context) error {
	if err := m.client.Del(ctx, m.valuesKey(), m.indexKey(), m.seqKey()).Err(); err != nil {
		return fmt.Errorf("redis memory clear: %w", err)
	}
	return nil
}

// Close 关闭底层客户端
func (m *RedisMemory) Close() error {
	return m.client.Close()
}
