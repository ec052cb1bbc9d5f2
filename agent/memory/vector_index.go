package memory

import "context"

// VectorHit 向量检索命中
type VectorHit struct {
	Key     string
	Content string
	Score   float32
}

// VectorIndex 长期记忆使用的向量索引
type VectorIndex interface {
	// Upsert 以 key 为标识写入或覆盖文档
	Upsert(ctx context.Context, key, content string) error
	// Query 返回按相似度降序的至多 k 个命中
	Query(ctx context.Context, query string, k int) ([]VectorHit, error)
	// Reset 删除全部文档
	Reset(ctx context.Context) error
}
