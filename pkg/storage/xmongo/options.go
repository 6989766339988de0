package xmongo

import (
	"context"
	"crypto/tls"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/xreplset/internal/storageopt"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// 默认值常量。
const (
	// DefaultConnectTimeout 建立连接与首次 ping 的默认超时。
	DefaultConnectTimeout = 60 * time.Second

	// DefaultAsyncSlowCommandWorkers 默认异步慢命令 worker 数量。
	DefaultAsyncSlowCommandWorkers = storageopt.DefaultAsyncWorkers

	// DefaultAsyncSlowCommandQueueSize 默认异步慢命令队列大小。
	DefaultAsyncSlowCommandQueueSize = storageopt.DefaultAsyncQueueSize
)

// CommandInfo 慢命令信息。
type CommandInfo struct {
	Address  string
	Database string
	// Command 命令名，即命令文档的第一个键。
	Command  string
	Duration time.Duration
}

// SlowCommandHook 慢命令同步钩子，在请求路径上执行，应保持轻量。
type SlowCommandHook func(ctx context.Context, info CommandInfo)

// AsyncSlowCommandHook 慢命令异步钩子，经内部 worker pool 执行。
type AsyncSlowCommandHook func(info CommandInfo)

// Option 配置 Transport 与 Prober。
// Prober 只使用 WithLogger 与 WithObserver，其余选项对它无效。
type Option func(*Options)

// Options 配置项。
type Options struct {
	ConnectTimeout time.Duration
	Credential     *options.Credential
	AppName        string
	TLSConfig      *tls.Config

	// SlowCommandThreshold 为 0 时禁用慢命令检测。
	SlowCommandThreshold time.Duration
	SlowCommandHook      SlowCommandHook
	AsyncSlowCommandHook AsyncSlowCommandHook

	Logger   xlog.Logger
	Observer xmetrics.Observer
}

func defaultOptions() *Options {
	return &Options{
		ConnectTimeout: DefaultConnectTimeout,
		Logger:         xlog.Discard(),
		Observer:       xmetrics.NoopObserver{},
	}
}

func applyOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// WithConnectTimeout 设置建连与首次 ping 的超时，非正数忽略。
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ConnectTimeout = d
		}
	}
}

// WithCredential 设置认证信息。
func WithCredential(c options.Credential) Option {
	return func(o *Options) {
		o.Credential = &c
	}
}

// WithAppName 设置上报给服务端的应用名。
func WithAppName(name string) Option {
	return func(o *Options) {
		o.AppName = name
	}
}

// WithTLS 启用 TLS，nil 忽略。
func WithTLS(cfg *tls.Config) Option {
	return func(o *Options) {
		if cfg != nil {
			o.TLSConfig = cfg
		}
	}
}

// WithSlowCommandThreshold 设置慢命令阈值，负数忽略，0 禁用。
func WithSlowCommandThreshold(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.SlowCommandThreshold = d
		}
	}
}

// WithSlowCommandHook 设置同步慢命令钩子。
func WithSlowCommandHook(hook SlowCommandHook) Option {
	return func(o *Options) {
		o.SlowCommandHook = hook
	}
}

// WithAsyncSlowCommandHook 设置异步慢命令钩子。
func WithAsyncSlowCommandHook(hook AsyncSlowCommandHook) Option {
	return func(o *Options) {
		o.AsyncSlowCommandHook = hook
	}
}

// WithLogger 设置日志记录器，nil 忽略。
func WithLogger(l xlog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithObserver 设置可观测性观察者，nil 忽略。
func WithObserver(obs xmetrics.Observer) Option {
	return func(o *Options) {
		if obs != nil {
			o.Observer = obs
		}
	}
}
