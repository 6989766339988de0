package xpool

import "github.com/omeyang/xreplset/pkg/observability/xlog"

// Option 定义 Pool 可选配置函数类型。
type Option func(*options)

type options struct {
	logger xlog.Logger
	name   string
}

func defaultOptions() options {
	return options{logger: xlog.Discard()}
}

// WithLogger 设置日志记录器，nil 忽略。
func WithLogger(logger xlog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 pool 名称，用于区分日志来源。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
