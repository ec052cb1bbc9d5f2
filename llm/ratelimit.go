package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited 在每次调用前等待令牌的限流包装
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited 创建限流包装；rps <= 0 表示不限流
func NewRateLimited(next Completer, rps float64, burst int) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Complete 实现 Completer
func (r *RateLimited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Complete(ctx, prompt)
}
