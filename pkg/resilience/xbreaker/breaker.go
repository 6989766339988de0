package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

type (
	// Counts 统计计数，用于熔断判定
	Counts = gobreaker.Counts
	// State 熔断器状态
	State = gobreaker.State
)

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// TripPolicy 熔断判定策略接口
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// Breaker 熔断器执行器
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	isSuccessful  func(err error) bool
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// BreakerOption 熔断器配置选项
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略。默认连续失败 5 次。
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithSuccessPredicate 自定义成功判定，默认 err == nil。
// 例如上下文取消不应计为节点故障。
func WithSuccessPredicate(fn func(err error) bool) BreakerOption {
	return func(b *Breaker) {
		b.isSuccessful = fn
	}
}

// WithTimeout 设置 Open 到 HalfOpen 的等待时间。默认 30 秒。
func WithTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下清零统计的周期。默认 0（不清零）。
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests 设置 HalfOpen 状态下允许通过的最大请求数。默认 1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调
func WithOnStateChange(f func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// NewBreaker 创建熔断器执行器，name 用于日志与错误信息。
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     30 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		opt(b)
	}

	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return b.tripPolicy.ReadyToTrip(counts)
		},
	}
	if b.isSuccessful != nil {
		st.IsSuccessful = b.isSuccessful
	}
	if b.onStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			b.onStateChange(name, from, to)
		}
	}
	b.cb = gobreaker.NewCircuitBreaker[any](st)
	return b
}

// Do 执行受熔断器保护的操作。
// ctx 已结束时直接返回 ctx 错误，不计入统计。
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	return wrapBreakerError(err, b.name)
}

// Execute 执行受熔断器保护的操作（泛型版本）。
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// State 返回熔断器当前状态
func (b *Breaker) State() State {
	return b.cb.State()
}

// Name 返回熔断器名称
func (b *Breaker) Name() string {
	return b.name
}

// Counts 返回当前统计计数
func (b *Breaker) Counts() Counts {
	return b.cb.Counts()
}
