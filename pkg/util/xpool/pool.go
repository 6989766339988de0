package xpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/omeyang/xreplset/pkg/observability/xlog"
)

const (
	maxWorkers   = 1 << 16
	maxQueueSize = 1 << 24
)

// Pool 泛型 worker pool，New 之后即开始工作。
type Pool[T any] struct {
	handler func(T)
	queue   chan T
	logger  xlog.Logger

	mu     sync.RWMutex
	closed bool

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// New 创建并启动 worker pool。
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 || workers > maxWorkers {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}
	if queueSize < 1 || queueSize > maxQueueSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQueueSize, queueSize)
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	logger := o.logger
	if o.name != "" {
		logger = logger.With(slog.String("pool", o.name))
	}

	p := &Pool[T]{
		handler: handler,
		queue:   make(chan T, queueSize),
		logger:  logger,
		done:    make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool[T]) run(task T) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(context.Background(), "xpool: worker panic recovered",
				slog.String("panic", fmt.Sprint(r)),
				slog.String("task_type", fmt.Sprintf("%T", task)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	p.handler(task)
}

// Submit 非阻塞提交任务。
func (p *Pool[T]) Submit(task T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolStopped
	}
	select {
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown 拒绝新任务并等待剩余任务完成，ctx 到期时提前返回。
// 提前返回后残留 worker 仍会处理完队列，可通过 Done 等待。
func (p *Pool[T]) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 等价于 Shutdown(context.Background())。
func (p *Pool[T]) Close() error {
	return p.Shutdown(context.Background())
}

// Done 在所有 worker 退出后关闭。
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}
