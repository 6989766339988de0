package xtopo

import (
	"time"

	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// 默认值。
const (
	DefaultCacheLifetime  = 15 * time.Second
	DefaultConnectTimeout = 60 * time.Second
	DefaultFailureBackoff = time.Second
)

// Option Monitor 配置选项
type Option func(*options)

type options struct {
	replicaSet      string
	cacheLifetime   time.Duration
	connectTimeout  time.Duration
	failureBackoff  time.Duration
	refreshInterval time.Duration
	hooks           []func(Change)
	logger          xlog.Logger
	observer        xmetrics.Observer
	now             func() time.Time
}

func defaultOptions() options {
	return options{
		cacheLifetime:  DefaultCacheLifetime,
		connectTimeout: DefaultConnectTimeout,
		failureBackoff: DefaultFailureBackoff,
		logger:         xlog.Discard(),
		observer:       xmetrics.NoopObserver{},
		now:            time.Now,
	}
}

// WithReplicaSet 设置期望的副本集名称，应答中的名称不符时该节点按探测失败处理。
func WithReplicaSet(name string) Option {
	return func(o *options) { o.replicaSet = name }
}

// WithCacheLifetime 设置快照缓存时长，非正数忽略。
func WithCacheLifetime(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.cacheLifetime = d
		}
	}
}

// WithConnectTimeout 设置单个节点探测的超时，非正数忽略。
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.connectTimeout = d
		}
	}
}

// WithFailureBackoff 设置刷新失败后再次尝试前的最短间隔，负数忽略，0 表示不节流。
func WithFailureBackoff(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.failureBackoff = d
		}
	}
}

// WithRefreshInterval 设置后台刷新周期，Start 后生效。非正数忽略。
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshInterval = d
		}
	}
}

// WithChangeHook 注册拓扑变化回调，可多次调用。回调在独立 worker 上串行执行。
func WithChangeHook(fn func(Change)) Option {
	return func(o *options) {
		if fn != nil {
			o.hooks = append(o.hooks, fn)
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

// WithClock 替换时间源，nil 忽略。
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
