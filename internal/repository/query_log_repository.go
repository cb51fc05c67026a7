package repository

import (
	"context"
	"legal-rag-go/internal/model"

	"gorm.io/gorm"
)

// QueryLogRepository 定义了对 query_logs 表的数据操作接口。
type QueryLogRepository interface {
	Create(ctx context.Context, entry *model.QueryLog) error
	FindRecent(ctx context.Context, limit int) ([]model.QueryLog, error)
}

type queryLogRepository struct {
	db *gorm.DB
}

// NewQueryLogRepository 创建一个新的 QueryLogRepository 实例。
func NewQueryLogRepository(db *gorm.DB) QueryLogRepository {
	return &queryLogRepository{db: db}
}

// Create 写入一条查询记录。
func (r *queryLogRepository) Create(ctx context.Context, entry *model.QueryLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// FindRecent 按时间倒序返回最近的查询记录。
func (r *queryLogRepository) FindRecent(ctx context.Context, limit int) ([]model.QueryLog, error) {
	var logs []model.QueryLog
	err := r.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&logs).Error
	return logs, err
}
