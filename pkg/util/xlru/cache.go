package xlru

import (
	"reflect"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const maxSize = 1 << 24

// Config 定义缓存配置。
type Config struct {
	// Size 最大条目数，取值 (0, 16777216]。
	Size int
	// TTL 条目过期时间，0 表示永不过期。
	TTL time.Duration
}

// Option 定义缓存可选配置函数类型。
type Option[K comparable, V any] func(*options[K, V])

type options[K comparable, V any] struct {
	onEvicted func(key K, value V)
}

// WithOnEvicted 设置条目被淘汰时的回调函数。
func WithOnEvicted[K comparable, V any](fn func(key K, value V)) Option[K, V] {
	return func(o *options[K, V]) {
		o.onEvicted = fn
	}
}

// Cache 带 TTL 的 LRU 缓存，并发安全。Close 后读返回零值，写被忽略。
type Cache[K comparable, V any] struct {
	lru       *expirable.LRU[K, V]
	createMu  sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

// New 创建 LRU 缓存。
func New[K comparable, V any](cfg Config, opts ...Option[K, V]) (*Cache[K, V], error) {
	switch {
	case cfg.Size <= 0:
		return nil, ErrInvalidSize
	case cfg.Size > maxSize:
		return nil, ErrSizeExceedsMax
	case cfg.TTL < 0:
		return nil, ErrInvalidTTL
	}
	o := &options[K, V]{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &Cache[K, V]{lru: expirable.NewLRU(cfg.Size, o.onEvicted, cfg.TTL)}, nil
}

// Get 获取缓存值。
func (c *Cache[K, V]) Get(key K) (value V, ok bool) {
	if c.closed.Load() {
		return value, false
	}
	return c.lru.Get(key)
}

// Set 设置缓存值，返回是否触发了淘汰。
func (c *Cache[K, V]) Set(key K, value V) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Add(key, value)
}

// GetOrCreate 命中时返回已有值；未命中时调用 create 并写入。
// 同一时刻只有一个 create 在执行，并发调用拿到同一个值。
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}
	c.createMu.Lock()
	defer c.createMu.Unlock()
	if v, ok := c.Get(key); ok {
		return v
	}
	v := create()
	c.Set(key, v)
	return v
}

// Delete 删除缓存条目，返回键是否存在。
func (c *Cache[K, V]) Delete(key K) bool {
	if c.closed.Load() {
		return false
	}
	return c.lru.Remove(key)
}

// Len 返回当前条目数，可能包含尚未清理的过期条目。
func (c *Cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	return c.lru.Len()
}

// Keys 返回所有键，从最旧到最新。
func (c *Cache[K, V]) Keys() []K {
	if c.closed.Load() {
		return nil
	}
	return c.lru.Keys()
}

// Close 清空缓存并停止过期清理 goroutine，幂等。
func (c *Cache[K, V]) Close() {
	c.closed.Store(true)
	c.closeOnce.Do(func() {
		c.lru.Purge()
		stopCleanupGoroutine(c.lru)
	})
}

// stopCleanupGoroutine 关闭 expirable.LRU 未导出的 done 通道。
// golang-lru v2.0.7 在 TTL > 0 时启动的清理 goroutine 没有公开的停止方法。
// 字段不存在或类型不符时降级为无操作。
func stopCleanupGoroutine(lru any) (stopped bool) {
	defer func() {
		if r := recover(); r != nil {
			stopped = false
		}
	}()
	v := reflect.ValueOf(lru)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return false
	}
	done := v.Elem().FieldByName("done")
	if !done.IsValid() || done.Type() != reflect.TypeOf(make(chan struct{})) || done.IsNil() {
		return false
	}
	ch := *(*chan struct{})(unsafe.Pointer(done.UnsafeAddr())) //nolint:gosec // 访问上游未导出字段
	close(ch)
	return true
}
