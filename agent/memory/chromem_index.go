package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig chromem 索引配置
type ChromemConfig struct {
	// Collection 集合名称
	Collection string
	// PersistPath 非空时使用持久化数据库
	PersistPath string
	Compress    bool
	Embedder    EmbeddingFunc
}

// ChromemIndex 基于 chromem-go 的进程内向量索引
type ChromemIndex struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	name       string
	embed      EmbeddingFunc
}

// NewChromemIndex 创建 chromem 索引
func NewChromemIndex(cfg ChromemConfig) (*ChromemIndex, error) {
	if cfg.Collection == "" {
		cfg.Collection = "agentcrew"
	}
	if cfg.Embedder == nil {
		cfg.Embedder = NewHashEmbedder(DefaultHashDimension)
	}

	db := chromem.NewDB()
	if cfg.PersistPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.PersistPath), 0o755); err != nil {
			return nil, fmt.Errorf("create chromem directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("open chromem collection %s: %w", cfg.Collection, err)
	}

	return &ChromemIndex{
		db:         db,
		collection: collection,
		name:       cfg.Collection,
		embed:      cfg.Embedder,
	}, nil
}

// Upsert 实现 VectorIndex
func (c *ChromemIndex) Upsert(ctx context.Context, key, content string) error {
	c.mu.RLock()
	collection := c.collection
	c.mu.RUnlock()

	doc := chromem.Document{
		ID:       key,
		Content:  content,
		Metadata: map[string]string{"key": key},
	}
	if err := collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("chromem upsert: %w", err)
	}
	return nil
}

// Query 实现 VectorIndex
func (c *ChromemIndex) Query(ctx context.Context, query string, k int) ([]VectorHit, error) {
	c.mu.RLock()
	collection := c.collection
	c.mu.RUnlock()

	// chromem 要求 nResults 不超过文档数
	k = min(k, collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]VectorHit, len(results))
	for i, r := range results {
		hits[i] = VectorHit{Key: r.ID, Content: r.Content, Score: r.Similarity}
	}
	return hits, nil
}

// Reset 删除并重建集合
func (c *ChromemIndex) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("chromem reset: %w", err)
	}
	collection, err := c.db.GetOrCreateCollection(c.name, nil, c.embed)
	if err != nil {
		return fmt.Errorf("chromem reset: %w", err)
	}
	c.collection = collection
	return nil
}

// Count 文档数
func (c *ChromemIndex) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.Count()
}
