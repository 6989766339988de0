package storageopt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/omeyang/xreplset/pkg/util/xpool"
)

// 默认值常量。
const (
	DefaultAsyncWorkers   = 2
	DefaultAsyncQueueSize = 256
)

// SlowCommandOptions 慢命令检测配置。
type SlowCommandOptions[T any] struct {
	// Threshold 为 0 时禁用检测。
	Threshold time.Duration
	// SyncHook 在请求路径上同步执行。
	SyncHook func(ctx context.Context, info T)
	// AsyncHook 经 worker pool 异步执行，队列满时丢弃。
	AsyncHook      func(info T)
	AsyncWorkers   int
	AsyncQueueSize int
}

// SlowCommandDetector 慢命令检测器。
type SlowCommandDetector[T any] struct {
	opts    SlowCommandOptions[T]
	counter SlowCommandCounter

	mu     sync.RWMutex
	pool   *xpool.Pool[T]
	closed bool
}

// NewSlowCommandDetector 创建检测器。AsyncHook 非 nil 时立即创建 worker pool。
func NewSlowCommandDetector[T any](opts SlowCommandOptions[T]) (*SlowCommandDetector[T], error) {
	if opts.AsyncWorkers <= 0 {
		opts.AsyncWorkers = DefaultAsyncWorkers
	}
	if opts.AsyncQueueSize <= 0 {
		opts.AsyncQueueSize = DefaultAsyncQueueSize
	}
	d := &SlowCommandDetector[T]{opts: opts}
	if opts.AsyncHook != nil {
		pool, err := xpool.New(opts.AsyncWorkers, opts.AsyncQueueSize, opts.AsyncHook, xpool.WithName("slow-command"))
		if err != nil {
			return nil, fmt.Errorf("storageopt: create async pool: %w", err)
		}
		d.pool = pool
	}
	return d, nil
}

// Observe 耗时达到阈值时触发钩子，返回是否判定为慢命令。
func (d *SlowCommandDetector[T]) Observe(ctx context.Context, info T, elapsed time.Duration) bool {
	if d == nil || d.opts.Threshold <= 0 || elapsed < d.opts.Threshold {
		return false
	}
	d.counter.Inc()
	if d.opts.SyncHook != nil {
		d.opts.SyncHook(ctx, info)
	}
	d.mu.RLock()
	if !d.closed && d.pool != nil {
		_ = d.pool.Submit(info) //nolint:errcheck // 队列满时丢弃通知
	}
	d.mu.RUnlock()
	return true
}

// Count 返回累计慢命令次数。
func (d *SlowCommandDetector[T]) Count() int64 {
	if d == nil {
		return 0
	}
	return d.counter.Count()
}

// Close 停止异步派发并等待已排队的钩子执行完。幂等。
func (d *SlowCommandDetector[T]) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	pool := d.pool
	d.pool = nil
	d.mu.Unlock()
	if pool != nil {
		_ = pool.Close()
	}
}
