package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited 用令牌桶限制对 embedding 服务的调用速率，主要用于离线批量索引。
type RateLimited struct {
	next    Client
	limiter *rate.Limiter
}

// NewRateLimited 包装 next；rps<=0 时不限速，直接返回 next。
func NewRateLimited(next Client, rps float64, burst int) Client {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// CreateEmbedding 等待令牌后调用底层客户端。
func (r *RateLimited) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}
	return r.next.CreateEmbedding(ctx, text)
}
