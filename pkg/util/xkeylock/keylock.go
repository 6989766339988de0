package xkeylock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Handle 表示一次成功的锁获取。
type Handle interface {
	// Unlock 释放锁。第一次返回 nil，后续返回 [ErrLockNotHeld]。
	Unlock() error
	Key() string
}

// Locker 基于 key 的互斥锁，非可重入。
type Locker struct {
	shards []shard
	mask   uint64
	closed atomic.Bool
	count  atomic.Int64
	done   chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// entry 的 ch 容量为 1：发送成功即持有锁，接收即释放。
// refs 统计持有者与等待者，归零时从 map 删除。
type entry struct {
	ch   chan struct{}
	refs int
}

type handle struct {
	l        *Locker
	key      string
	e        *entry
	released atomic.Bool
}

// New 创建 Locker。分片数不是 2 的幂时返回错误。
func New(opts ...Option) (*Locker, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	shards := make([]shard, o.shardCount)
	for i := range shards {
		shards[i].entries = make(map[string]*entry)
	}
	return &Locker{
		shards: shards,
		mask:   uint64(o.shardCount - 1),
		done:   make(chan struct{}),
	}, nil
}

func (l *Locker) shardFor(key string) *shard {
	return &l.shards[xxhash.Sum64String(key)&l.mask]
}

func (l *Locker) ref(key string) (*entry, error) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.closed.Load() {
		return nil, ErrClosed
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		s.entries[key] = e
		l.count.Add(1)
	}
	e.refs++
	return e, nil
}

func (l *Locker) unref(key string, e *entry) {
	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(s.entries, key)
		l.count.Add(-1)
	}
}

// Acquire 阻塞获取锁，支持 ctx 取消。
func (l *Locker) Acquire(ctx context.Context, key string) (Handle, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if key == "" {
		return nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &handle{l: l, key: key, e: e}, nil
	case <-ctx.Done():
		l.unref(key, e)
		return nil, ctx.Err()
	case <-l.done:
		l.unref(key, e)
		return nil, ErrClosed
	}
}

// TryAcquire 非阻塞获取锁，占用时返回 [ErrLockOccupied]。
func (l *Locker) TryAcquire(key string) (Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	e, err := l.ref(key)
	if err != nil {
		return nil, err
	}
	select {
	case e.ch <- struct{}{}:
		return &handle{l: l, key: key, e: e}, nil
	default:
		l.unref(key, e)
		return nil, ErrLockOccupied
	}
}

// Len 返回当前活跃的 key 数量（持有者与等待者）。
func (l *Locker) Len() int {
	return int(max(l.count.Load(), 0))
}

// Close 唤醒所有等待者并拒绝新的获取。已持有的 Handle 仍可 Unlock。
func (l *Locker) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(l.done)
	return nil
}

func (h *handle) Unlock() error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrLockNotHeld
	}
	<-h.e.ch
	h.l.unref(h.key, h.e)
	return nil
}

func (h *handle) Key() string { return h.key }

var _ Handle = (*handle)(nil)
