package memory

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentcrew/internal/tlsutil"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// keyNamespace 由记忆键派生稳定点 ID 的命名空间
var keyNamespace = uuid.MustParse("6f1d3a52-8c4e-4d7a-9b35-2e0f6c1a7d90")

// QdrantConfig Qdrant 索引配置
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	// Dimension 向量维度，需与 Embedder 输出一致
	Dimension int
	Embedder  EmbeddingFunc
}

// QdrantIndex 基于 Qdrant gRPC 的远程向量索引
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	dim        int
	embed      EmbeddingFunc
}

// NewQdrantIndex 连接 Qdrant 并确保集合存在
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = "agentcrew"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultHashDimension
	}
	if cfg.Embedder == nil {
		cfg.Embedder = NewHashEmbedder(cfg.Dimension)
	}

	qcfg := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	}
	if cfg.UseTLS {
		qcfg.TLSConfig = tlsutil.ClientConfig()
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: cfg.Collection,
		dim:        cfg.Dimension,
		embed:      cfg.Embedder,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	_, err := q.client.GetCollectionInfo(ctx, q.collection)
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); !ok || st.Code() != grpccodes.NotFound {
		return fmt.Errorf("qdrant collection %s: %w", q.collection, err)
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dim),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create qdrant collection %s: %w", q.collection, err)
	}
	return nil
}

// pointID 相同键映射到相同点，实现覆盖写入
func pointID(key string) string {
	return uuid.NewSHA1(keyNamespace, []byte(key)).String()
}

// Upsert 实现 VectorIndex
func (q *QdrantIndex) Upsert(ctx context.Context, key, content string) error {
	vec, err := q.embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	_, err = q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(key)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: map[string]*qdrant.Value{
				"key":     {Kind: &qdrant.Value_StringValue{StringValue: key}},
				"content": {Kind: &qdrant.Value_StringValue{StringValue: content}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

// Query 实现 VectorIndex
func (q *QdrantIndex) Query(ctx context.Context, query string, k int) ([]VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := q.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	hits := make([]VectorHit, 0, len(points))
	for _, p := range points {
		hits = append(hits, VectorHit{
			Key:     p.GetPayload()["key"].GetStringValue(),
			Content: p.GetPayload()["content"].GetStringValue(),
			Score:   p.GetScore(),
		})
	}
	return hits, nil
}

// Reset 删除并重建集合
func (q *QdrantIndex) Reset(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("qdrant reset: %w", err)
	}
	return q.ensureCollection(ctx)
}

// Close 关闭 gRPC 连接
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
