package xlog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ReplaceAttrFunc 属性替换函数类型，用于字段重命名、脱敏、过滤。
// 返回空 Key 的 Attr 会移除该属性。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// RotationOptions 文件轮转参数，直接映射到 lumberjack.Logger。
type RotationOptions struct {
	// MaxSizeMB 单个文件最大尺寸（MB），默认 100。
	MaxSizeMB int
	// MaxBackups 保留的旧文件个数，0 表示全部保留。
	MaxBackups int
	// MaxAgeDays 旧文件最长保留天数，0 表示不按时间清理。
	MaxAgeDays int
	// Compress 是否 gzip 压缩旧文件。
	Compress bool
}

// Builder 日志配置构建器
type Builder struct {
	output      io.Writer
	levelVar    *slog.LevelVar
	format      string
	addSource   bool
	replaceAttr ReplaceAttrFunc
	rotator     *lumberjack.Logger
	onError     func(error)
	attrs       []slog.Attr
	err         error
}

// New 创建配置构建器。默认输出到 stderr，Info 级别，text 格式。
func New() *Builder {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: levelVar,
		format:   "text",
	}
}

// SetOutput 设置日志输出目标。nil 被忽略。
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err != nil || w == nil {
		return b
	}
	b.output = w
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	if b.err != nil {
		return b
	}
	b.levelVar.Set(slog.Level(level))
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json。空值视为 text。
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	normalized := strings.ToLower(strings.TrimSpace(format))
	switch normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.err = fmt.Errorf("xlog: unknown format %q", format)
	}
	return b
}

// SetAddSource 是否在日志中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	if b.err != nil {
		return b
	}
	b.addSource = enable
	return b
}

// SetRotation 将输出切换为按大小轮转的日志文件。
func (b *Builder) SetRotation(filename string, opts ...RotationOptions) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(filename) == "" {
		b.err = errors.New("xlog: rotation filename is empty")
		return b
	}
	o := RotationOptions{MaxSizeMB: 100}
	if len(opts) > 0 {
		o = opts[0]
		if o.MaxSizeMB <= 0 {
			o.MaxSizeMB = 100
		}
	}
	b.rotator = &lumberjack.Logger{
		Filename:   filepath.Clean(filename),
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   o.Compress,
	}
	b.output = b.rotator
	return b
}

// SetOnError 设置 Handler 写入失败时的回调。回调在日志热路径同步执行。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	if b.err != nil {
		return b
	}
	b.onError = fn
	return b
}

// SetReplaceAttr 设置属性替换函数（日志治理）
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	if b.err != nil {
		return b
	}
	b.replaceAttr = fn
	return b
}

// SetAttrs 设置每条日志都携带的固定属性（如服务名）。
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	if b.err != nil {
		return b
	}
	b.attrs = append(b.attrs, attrs...)
	return b
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例
//   - func() error: 清理函数（关闭轮转文件），幂等
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	opts := &slog.HandlerOptions{
		Level:     b.levelVar,
		AddSource: b.addSource,
	}
	if b.replaceAttr != nil {
		opts.ReplaceAttr = b.replaceAttr
	}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	logger := &xlogger{
		handler:    handler,
		levelVar:   b.levelVar,
		onError:    b.onError,
		errorCount: new(atomic.Uint64),
		addSource:  b.addSource,
	}

	var once sync.Once
	rotator := b.rotator
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
	return logger, cleanup, nil
}
