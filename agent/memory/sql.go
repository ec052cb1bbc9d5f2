package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentcrew/internal/database"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MemoryEntry memory_entries 表的一行
type MemoryEntry struct {
	ID        uint   `gorm:"primaryKey"`
	Namespace string `gorm:"size:128;not null;uniqueIndex:idx_memory_ns_key"`
	EntryKey  string `gorm:"column:entry_key;size:512;not null;uniqueIndex:idx_memory_ns_key"`
	Value     string `gorm:"column:entry_value;type:text"`
	Seq       int64  `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 表名
func (MemoryEntry) TableName() string { return "memory_entries" }

// SQLMemory 基于 GORM 的持久化记忆
//
// 多个 Agent 共用一张表，以 namespace 隔离。值以 JSON 文本存储。
type SQLMemory struct {
	pool      *database.PoolManager
	namespace string
	owned     bool
	logger    *zap.Logger
}

// NewSQLMemory 创建 SQL 记忆；首次使用前需调用 Migrate
func NewSQLMemory(pool *database.PoolManager, namespace string, logger *zap.Logger) *SQLMemory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLMemory{
		pool:      pool,
		namespace: namespace,
		logger:    logger.With(zap.String("component", "memory_sql"), zap.String("namespace", namespace)),
	}
}

// Migrate 创建或更新表结构
func (m *SQLMemory) Migrate(ctx context.Context) error {
	if err := m.pool.DB().WithContext(ctx).AutoMigrate(&MemoryEntry{}); err != nil {
		return fmt.Errorf("migrate memory_entries: %w", err)
	}
	return nil
}

// Add 写入条目
func (m *SQLMemory) Add(ctx context.Context, key string, value any) error {
	return m.AddAll(ctx, map[string]any{key: value})
}

// AddAll 在一个事务中批量写入，已存在的键被覆盖
func (m *SQLMemory) AddAll(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	seq := time.Now().UnixNano()
	entries := make([]MemoryEntry, 0, len(values))
	for k, v := range values {
		if k == "" {
			return ErrKeyRequired
		}
		data, err := encodeValue(v)
		if err != nil {
			return err
		}
		seq++
		entries = append(entries, MemoryEntry{
			Namespace: m.namespace,
			EntryKey:  k,
			Value:     string(data),
			Seq:       seq,
		})
	}

	err := m.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "namespace"}, {Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"entry_value", "seq", "updated_at"}),
		}).Create(&entries).Error
	})
	if err != nil {
		return fmt.Errorf("sql memory add: %w", err)
	}
	return nil
}

// Get 读取条目
func (m *SQLMemory) Get(ctx context.Context, key string) (any, bool, error) {
	var entry MemoryEntry
	err := m.pool.DB().WithContext(ctx).
		Where("namespace = ? AND entry_key = ?", m.namespace, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sql memory get: %w", err)
	}
	v, err := decodeValue([]byte(entry.Value))
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Search 子串匹配（LIKE），最近写入优先
func (m *SQLMemory) Search(ctx context.Context, query string, topK int) ([]any, error) {
	if topK <= 0 {
		return nil, nil
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var entries []MemoryEntry
	err := m.pool.DB().WithContext(ctx).
		Where("namespace = ?", m.namespace).
		Where("LOWER(entry_key) LIKE ? OR LOWER(entry_value) LIKE ?", pattern, pattern).
		Order("seq DESC").
		Limit(topK).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("sql memory search: %w", err)
	}

	out := make([]any, 0, len(entries))
	for _, e := range entries {
		v, err := decodeValue([]byte(e.Value))
		if err != nil {
			m.logger.Warn("skipping undecodable entry", zap.String("key", e.EntryKey), zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Clear 删除该 namespace 的全部条目
func (m *SQLMemory) Clear(ctx context.Context) error {
	err := m.pool.DB().WithContext(ctx).
		Where("namespace = ?", m.namespace).
		Delete(&MemoryEntry{}).Error
	if err != nil {
		return fmt.Errorf("sql memory clear: %w", err)
	}
	return nil
}

// Close 关闭由工厂创建的连接池
func (m *SQLMemory) Close() error {
	if m.owned {
		return m.pool.Close()
	}
	return nil
}
