package xretry

import "context"

// FixedRetryPolicy 固定次数重试策略
type FixedRetryPolicy struct {
	maxAttempts int
}

// NewFixedRetry 创建固定次数重试策略
// maxAttempts: 最大尝试次数（包含首次尝试），最小为 1
func NewFixedRetry(maxAttempts int) *FixedRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts}
}

func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *FixedRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	return IsRetryable(err)
}

// PredicateRetryPolicy 在固定次数之上附加错误判定。
// 只有 pred(err) 为 true 的错误才会重试。
type PredicateRetryPolicy struct {
	FixedRetryPolicy
	pred func(error) bool
}

// NewPredicateRetry 创建带错误判定的重试策略。pred 为 nil 时等价于 NewFixedRetry。
func NewPredicateRetry(maxAttempts int, pred func(error) bool) *PredicateRetryPolicy {
	return &PredicateRetryPolicy{FixedRetryPolicy: *NewFixedRetry(maxAttempts), pred: pred}
}

func (p *PredicateRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if !p.FixedRetryPolicy.ShouldRetry(ctx, attempt, err) {
		return false
	}
	return p.pred == nil || p.pred(err)
}

// NeverRetryPolicy 永不重试策略
type NeverRetryPolicy struct{}

// NewNeverRetry 创建永不重试策略
func NewNeverRetry() *NeverRetryPolicy {
	return &NeverRetryPolicy{}
}

func (p *NeverRetryPolicy) MaxAttempts() int { return 1 }

func (p *NeverRetryPolicy) ShouldRetry(context.Context, int, error) bool { return false }

var (
	_ RetryPolicy = (*FixedRetryPolicy)(nil)
	_ RetryPolicy = (*PredicateRetryPolicy)(nil)
	_ RetryPolicy = (*NeverRetryPolicy)(nil)
)
