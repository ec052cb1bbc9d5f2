package types

import "context"

// Memory 键值存储 + 语义检索
type Memory interface {
	Add(ctx context.Context, key string, value any) error
	AddAll(ctx context.Context, values map[string]any) error
	// Get 返回 (value, found, err)
	Get(ctx context.Context, key string) (any, bool, error)
	// Search 返回按相关度排序的至多 topK 个值
	Search(ctx context.Context, query string, topK int) ([]any, error)
	Clear(ctx context.Context) error
}
