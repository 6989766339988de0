package xreplset

import (
	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
	"github.com/omeyang/xreplset/pkg/cluster/xtopo"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// DefaultDatabaseCacheSize 数据库句柄缓存的容量。
const DefaultDatabaseCacheSize = 1024

// Option 客户端配置选项
type Option func(*options)

type options struct {
	transport    xconnpool.Transport
	prober       xtopo.Prober
	logger       xlog.Logger
	observer     xmetrics.Observer
	rand         xreadpref.Rand
	topologyOpts []xtopo.Option
	poolOpts     []xconnpool.Option
}

func defaultOptions() *options {
	return &options{
		logger:   xlog.Discard(),
		observer: xmetrics.NoopObserver{},
	}
}

// WithTransport 替换默认的 mongo 传输层，nil 忽略。
func WithTransport(t xconnpool.Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

// WithProber 替换默认的副本集状态探测器，nil 忽略。
func WithProber(p xtopo.Prober) Option {
	return func(o *options) {
		if p != nil {
			o.prober = p
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

// WithRand 设置节点随机选择所用的随机源，nil 忽略。
func WithRand(r xreadpref.Rand) Option {
	return func(o *options) {
		if r != nil {
			o.rand = r
		}
	}
}

// WithTopologyOptions 追加拓扑监视器选项，在配置派生的选项之后生效。
func WithTopologyOptions(opts ...xtopo.Option) Option {
	return func(o *options) {
		o.topologyOpts = append(o.topologyOpts, opts...)
	}
}

// WithPoolOptions 追加连接池选项，在配置派生的选项之后生效。
func WithPoolOptions(opts ...xconnpool.Option) Option {
	return func(o *options) {
		o.poolOpts = append(o.poolOpts, opts...)
	}
}
