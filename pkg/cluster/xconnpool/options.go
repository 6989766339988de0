package xconnpool

import (
	"time"

	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// 默认值。
const (
	DefaultConnectTimeout   = 60 * time.Second
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 5 * time.Second
)

// Option Pool 配置选项
type Option func(*options)

type options struct {
	connectTimeout   time.Duration
	breakerThreshold uint32
	breakerCooldown  time.Duration
	logger           xlog.Logger
	observer         xmetrics.Observer
}

func defaultOptions() options {
	return options{
		connectTimeout:   DefaultConnectTimeout,
		breakerThreshold: DefaultBreakerThreshold,
		breakerCooldown:  DefaultBreakerCooldown,
		logger:           xlog.Discard(),
		observer:         xmetrics.NoopObserver{},
	}
}

// WithConnectTimeout 设置打开连接的超时，非正数忽略。
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithBreakerThreshold 设置触发熔断的连续失败次数，0 忽略。
func WithBreakerThreshold(n uint32) Option {
	return func(o *options) {
		if n > 0 {
			o.breakerThreshold = n
		}
	}
}

// WithBreakerCooldown 设置熔断后进入半开状态前的冷却时间，非正数忽略。
func WithBreakerCooldown(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.breakerCooldown = d
		}
	}
}

// WithLogger 设置日志记录器，nil 忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver 设置可观测性观察者，nil 忽略。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
