package xconnpool

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
	"github.com/omeyang/xreplset/pkg/resilience/xbreaker"
	"github.com/omeyang/xreplset/pkg/util/xkeylock"
)

const componentName = "xconnpool"

// Pool 按地址缓存连接。所有方法并发安全。
type Pool struct {
	transport Transport
	opts      options
	logger    xlog.Logger
	locks     *xkeylock.Locker

	mu       sync.RWMutex
	conns    map[string]Conn
	breakers map[string]*xbreaker.Breaker
	closed   bool

	opens          atomic.Int64
	openErrors     atomic.Int64
	reuses         atomic.Int64
	invalidations  atomic.Int64
	breakerRejects atomic.Int64
}

// Stats 连接池统计。
type Stats struct {
	Open           int
	Opens          int64
	OpenErrors     int64
	Reuses         int64
	Invalidations  int64
	BreakerRejects int64
}

// New 创建连接池。
func New(transport Transport, opts ...Option) (*Pool, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	locks, err := xkeylock.New()
	if err != nil {
		return nil, err
	}
	return &Pool{
		transport: transport,
		opts:      o,
		logger:    o.logger.With(xlog.Component(componentName)),
		locks:     locks,
		conns:     make(map[string]Conn),
		breakers:  make(map[string]*xbreaker.Breaker),
	}, nil
}

// Acquire 返回 address 上已打开的连接，没有则打开一个新连接。
// 同一地址的并发首次调用只会打开一次。失败时返回 *ConnectError。
func (p *Pool) Acquire(ctx context.Context, address string) (Conn, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if c, ok := p.Lookup(address); ok {
		p.reuses.Add(1)
		return c, nil
	}
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	h, err := p.locks.Acquire(ctx, address)
	if err != nil {
		if errors.Is(err, xkeylock.ErrClosed) {
			return nil, ErrPoolClosed
		}
		return nil, &ConnectError{Address: address, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
	}
	defer func() { _ = h.Unlock() }()

	// 等锁期间其他调用方可能已经打开
	if c, ok := p.Lookup(address); ok {
		p.reuses.Add(1)
		return c, nil
	}
	p.dropStale(ctx, address)
	return p.open(ctx, address)
}

func (p *Pool) open(ctx context.Context, address string) (conn Conn, err error) {
	ctx, span := xmetrics.Start(ctx, p.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "open",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("address", address)},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	octx, cancel := context.WithTimeout(ctx, p.opts.connectTimeout)
	defer cancel()

	conn, err = xbreaker.Execute(octx, p.breaker(address), func(ctx context.Context) (Conn, error) {
		c, err := p.transport.Open(ctx, address)
		if err == nil && c == nil {
			err = errNilConnection
		}
		return c, err
	})
	if err != nil {
		p.openErrors.Add(1)
		if xbreaker.IsBreakerError(err) {
			p.breakerRejects.Add(1)
		}
		ce := &ConnectError{Address: address, Timeout: errors.Is(err, context.DeadlineExceeded), Err: err}
		p.logger.Warn(ctx, "open connection failed", xlog.Address(address), xlog.Err(err))
		return nil, ce
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close(context.WithoutCancel(ctx))
		return nil, ErrPoolClosed
	}
	p.conns[address] = conn
	p.mu.Unlock()

	p.opens.Add(1)
	p.logger.Debug(ctx, "connection opened", xlog.Address(address))
	return conn, nil
}

// dropStale 移除已失效但仍在表中的连接。调用方持有地址锁。
func (p *Pool) dropStale(ctx context.Context, address string) {
	p.mu.Lock()
	c, ok := p.conns[address]
	if ok {
		delete(p.conns, address)
	}
	p.mu.Unlock()
	if ok {
		_ = c.Close(ctx)
	}
}

func (p *Pool) breaker(address string) *xbreaker.Breaker {
	p.mu.RLock()
	b, ok := p.breakers[address]
	p.mu.RUnlock()
	if ok {
		return b
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.breakers[address]; ok {
		return b
	}
	b = xbreaker.NewBreaker(componentName+":"+address,
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(p.opts.breakerThreshold)),
		xbreaker.WithTimeout(p.opts.breakerCooldown),
		xbreaker.WithSuccessPredicate(func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}),
		xbreaker.WithOnStateChange(func(_ string, from, to xbreaker.State) {
			p.logger.Warn(context.Background(), "connection breaker state changed",
				xlog.Address(address), xlog.Operation(from.String()+"->"+to.String()))
		}),
	)
	p.breakers[address] = b
	return b
}

// BreakerState 返回 address 熔断器的状态，从未打开过连接时 ok 为 false。
func (p *Pool) BreakerState(address string) (state xbreaker.State, ok bool) {
	p.mu.RLock()
	b, ok := p.breakers[address]
	p.mu.RUnlock()
	if !ok {
		return xbreaker.StateClosed, false
	}
	return b.State(), true
}

// Lookup 返回已打开的连接，不会打开新连接。
func (p *Pool) Lookup(address string) (Conn, bool) {
	p.mu.RLock()
	c, ok := p.conns[address]
	p.mu.RUnlock()
	if !ok || !c.IsOpen() {
		return nil, false
	}
	return c, true
}

// Invalidate 关闭并移除 address 的连接。地址未知时为空操作。
// 与同一地址上进行中的 Acquire 互斥：正在打开的连接会在打开完成后被移除。
func (p *Pool) Invalidate(ctx context.Context, address string) error {
	if ctx == nil {
		return ErrNilContext
	}
	if address == "" {
		return nil
	}
	h, err := p.locks.Acquire(ctx, address)
	switch {
	case errors.Is(err, xkeylock.ErrClosed):
		// CloseAll 已经关闭了全部连接
		return nil
	case err != nil:
		return err
	}
	defer func() { _ = h.Unlock() }()

	p.mu.Lock()
	c, ok := p.conns[address]
	if ok {
		delete(p.conns, address)
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	p.invalidations.Add(1)
	p.logger.Info(ctx, "connection invalidated", xlog.Address(address))
	return c.Close(ctx)
}

// CloseAll 关闭全部连接，之后 Acquire 返回 ErrPoolClosed。重复调用为空操作。
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]Conn)
	p.mu.Unlock()

	_ = p.locks.Close()
	var errs []error
	for _, c := range conns {
		if err := c.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Addresses 返回持有连接的地址，已排序。
func (p *Pool) Addresses() []string {
	p.mu.RLock()
	out := make([]string, 0, len(p.conns))
	for addr := range p.conns {
		out = append(out, addr)
	}
	p.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Stats 返回统计快照。
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	n := len(p.conns)
	p.mu.RUnlock()
	return Stats{
		Open:           n,
		Opens:          p.opens.Load(),
		OpenErrors:     p.openErrors.Load(),
		Reuses:         p.reuses.Load(),
		Invalidations:  p.invalidations.Load(),
		BreakerRejects: p.breakerRejects.Load(),
	}
}

func (p *Pool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}
