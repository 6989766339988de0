package xretry

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// RetryPolicy 定义重试策略接口
//
//   - MaxAttempts() 设置 retry-go 的 Attempts 上限（包含首次尝试）
//   - ShouldRetry() 在每次失败后被调用，attempt 从 1 开始
type RetryPolicy interface {
	MaxAttempts() int
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 定义退避策略接口，attempt 从 1 开始。
type BackoffPolicy interface {
	NextDelay(attempt int) time.Duration
}

// Executor 重试执行器接口，供调用方 mock。
type Executor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

var _ Executor = (*Retryer)(nil)

// Retryer 重试执行器，组合 RetryPolicy 与 BackoffPolicy。
type Retryer struct {
	retryPolicy    RetryPolicy
	backoffPolicy  BackoffPolicy
	attemptTimeout time.Duration
	onRetry        func(attempt int, err error)
}

// RetryerOption 执行器配置选项
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略，nil 忽略。
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略，nil 忽略。
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithAttemptTimeout 为每次尝试单独设置超时，非正数表示不限制。
// 单次超时不会取消外层 ctx，下一次尝试拿到新的预算。
func WithAttemptTimeout(d time.Duration) RetryerOption {
	return func(r *Retryer) {
		if d > 0 {
			r.attemptTimeout = d
		}
	}
}

// WithOnRetry 设置重试回调函数，attempt 为已失败次数（从 1 开始）。
func WithOnRetry(f func(attempt int, err error)) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 创建重试执行器。默认 FixedRetry(3) + ExponentialBackoff。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行带重试的操作，返回最后一次的错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return r.attempt(ctx, fn)
	})
}

// DoWithResult 执行带重试的操作（有返回值）。
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if r == nil {
		return zero, ErrNilRetryer
	}
	if ctx == nil {
		return zero, ErrNilContext
	}
	if fn == nil {
		return zero, ErrNilFunc
	}
	return retry.NewWithData[T](r.buildOptions(ctx)...).Do(func() (T, error) {
		var out T
		err := r.attempt(ctx, func(actx context.Context) error {
			v, err := fn(actx)
			out = v
			return err
		})
		return out, err
	})
}

func (r *Retryer) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.attemptTimeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()
	return fn(actx)
}

func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	retryPolicy := r.retryPolicy
	if retryPolicy == nil {
		retryPolicy = NewFixedRetry(3)
	}
	backoffPolicy := r.backoffPolicy
	if backoffPolicy == nil {
		backoffPolicy = NewExponentialBackoff()
	}

	opts := make([]retry.Option, 0, 6)
	opts = append(opts, retry.Context(ctx))

	maxAttempts := retryPolicy.MaxAttempts()
	if maxAttempts <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(uint(maxAttempts)))
	}

	// Attempts 是硬上限，ShouldRetry 可以提前终止。
	var failures atomic.Int64
	opts = append(opts, retry.RetryIf(func(err error) bool {
		n := int(failures.Add(1))
		if !retry.IsRecoverable(err) {
			return false
		}
		return retryPolicy.ShouldRetry(ctx, n, err)
	}))

	// retry-go v5 的 DelayType n 从 1 开始。
	opts = append(opts, retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
		return backoffPolicy.NextDelay(clampInt(n))
	}))

	if r.onRetry != nil {
		// OnRetry 的 n 从 0 开始。
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			r.onRetry(clampInt(n)+1, err)
		}))
	}

	return append(opts, retry.LastErrorOnly(true))
}

func clampInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
