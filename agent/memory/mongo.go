package memory

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// mongoEntry 集合中的文档
type mongoEntry struct {
	Namespace string `bson:"namespace"`
	Key       string `bson:"key"`
	Value     string `bson:"value"`
	// Text 小写的键与值，供正则检索
	Text string `bson:"text"`
	Seq  int64  `bson:"seq"`
}

// MongoMemory 基于 MongoDB 的持久化记忆
//
// 值以 JSON 文本存储；Search 对小写文本做正则子串匹配，最近写入优先。
type MongoMemory struct {
	client     *mongo.Client
	collection *mongo.Collection
	namespace  string
	logger     *zap.Logger
}

// ConnectMongo 连接 MongoDB
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewMongoMemory 创建 Mongo 记忆；client 非 nil 时 Close 会断开连接
func NewMongoMemory(client *mongo.Client, database, collection, namespace string, logger *zap.Logger) *MongoMemory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MongoMemory{
		client:     client,
		collection: client.Database(database).Collection(collection),
		namespace:  namespace,
		logger:     logger.With(zap.String("component", "memory_mongo"), zap.String("namespace", namespace)),
	}
}

// EnsureIndexes 创建 (namespace, key) 唯一索引与 seq 索引
func (m *MongoMemory) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "namespace", Value: 1}, {Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "namespace", Value: 1}, {Key: "seq", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create mongo indexes: %w", err)
	}
	return nil
}

// Add 写入条目
func (m *MongoMemory) Add(ctx context.Context, key string, value any) error {
	if key == "" {
		return ErrKeyRequired
	}
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	entry := mongoEntry{
		Namespace: m.namespace,
		Key:       key,
		Value:     string(data),
		Text:      strings.ToLower(key + "\n" + string(data)),
		Seq:       time.Now().UnixNano(),
	}
	_, err = m.collection.UpdateOne(ctx,
		m.keyFilter(key),
		bson.M{"$set": entry},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo memory add: %w", err)
	}
	return nil
}

// AddAll 逐条写入，遇错即止
func (m *MongoMemory) AddAll(ctx context.Context, values map[string]any) error {
	for k, v := range values {
		if err := m.Add(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// Get 读取条目
func (m *MongoMemory) Get(ctx context.Context, key string) (any, bool, error) {
	var entry mongoEntry
	err := m.collection.FindOne(ctx, m.keyFilter(key)).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mongo memory get: %w", err)
	}
	v, err := decodeValue([]byte(entry.Value))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Search 正则子串匹配，最近写入优先
func (m *MongoMemory) Search(ctx context.Context, query string, topK int) ([]any, error) {
	if topK <= 0 {
		return nil, nil
	}
	cursor, err := m.collection.Find(ctx,
		searchFilter(m.namespace, query),
		options.Find().SetSort(bson.D{{Key: "seq", Value: -1}}).SetLimit(int64(topK)),
	)
	if err != nil {
		return nil, fmt.Errorf("mongo memory search: %w", err)
	}
	var entries []mongoEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("mongo memory search: %w", err)
	}

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := decodeValue([]byte(e.Value))
		if err != nil {
			m.logger.Warn("skipping undecodable entry", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Clear 删除该 namespace 的全部条目
func (m *MongoMemory) Clear(ctx context.Context) error {
	if _, err := m.collection.DeleteMany(ctx, bson.M{"namespace": m.namespace}); err != nil {
		return fmt.Errorf("mongo memory clear: %w", err)
	}
	return nil
}

// Close 断开连接
func (m *MongoMemory) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoMemory) keyFilter(key string) bson.M {
	return bson.M{"namespace": m.namespace, "key": key}
}

// searchFilter 空查询匹配 namespace 下全部条目
func searchFilter(namespace, query string) bson.M {
	filter := bson.M{"namespace": namespace}
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		filter["text"] = bson.M{"$regex": regexp.QuoteMeta(q)}
	}
	return filter
}
