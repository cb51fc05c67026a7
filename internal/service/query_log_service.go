package service

import (
	"context"

	"legal-rag-go/internal/model"
	"legal-rag-go/internal/repository"
)

const maxQueryLogLimit = 100

// QueryLogService 提供查询审计记录的只读访问。
type QueryLogService interface {
	Recent(ctx context.Context, limit int) ([]model.QueryLog, error)
}

type queryLogService struct {
	repo repository.QueryLogRepository
}

// NewQueryLogService 创建一个新的 QueryLogService。
func NewQueryLogService(repo repository.QueryLogRepository) QueryLogService {
	return &queryLogService{repo: repo}
}

// Recent 返回最近的查询记录，limit 被限制在 [1, 100]。
func (s *queryLogService) Recent(ctx context.Context, limit int) ([]model.QueryLog, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxQueryLogLimit {
		limit = maxQueryLogLimit
	}
	return s.repo.FindRecent(ctx, limit)
}
