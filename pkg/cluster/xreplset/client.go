package xreplset

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
	"github.com/omeyang/xreplset/pkg/cluster/xtopo"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
	"github.com/omeyang/xreplset/pkg/resilience/xretry"
	"github.com/omeyang/xreplset/pkg/storage/xmongo"
	"github.com/omeyang/xreplset/pkg/util/xlru"
)

const componentName = "xreplset"

// Client 副本集客户端。组合拓扑监视器、读偏好解析器与连接池，所有方法并发安全。
type Client struct {
	id       string
	seeds    []string
	logger   xlog.Logger
	observer xmetrics.Observer

	monitor  *xtopo.Monitor
	resolver *xreadpref.Resolver
	pool     *xconnpool.Pool
	retryer  *xretry.Retryer
	dbs      *xlru.Cache[string, *Database]
	// ownTransport 由客户端创建的传输层，Close 时一并关闭。
	ownTransport *xmongo.Transport

	readPref atomic.Pointer[xreadpref.ReadPref]

	mu        sync.Mutex
	connected bool
	closed    bool
}

// Stats 客户端运行统计。
type Stats struct {
	Topology xtopo.Stats
	Pool     xconnpool.Stats
}

// NewFromURI 由连接串创建客户端。
func NewFromURI(uri string, opts ...Option) (*Client, error) {
	return New(Config{URI: uri}, opts...)
}

// New 创建客户端。创建过程不做网络 I/O，拓扑在首次使用时获取。
func New(cfg Config, opts ...Option) (c *Client, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	r, err := cfg.resolve()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := o.logger.With(xlog.Component(componentName), xlog.ClientID(id))
	c = &Client{
		id:       id,
		logger:   logger,
		observer: o.observer,
	}
	c.readPref.Store(&r.readPref)

	// 构造中途失败时释放已创建的资源
	defer func() {
		if err != nil {
			c.release(context.Background())
		}
	}()

	transport := o.transport
	if transport == nil {
		topts := append(r.transport,
			xmongo.WithConnectTimeout(cfg.ConnectTimeout),
			xmongo.WithLogger(o.logger),
			xmongo.WithObserver(o.observer))
		t, err := xmongo.NewTransport(topts...)
		if err != nil {
			return nil, err
		}
		c.ownTransport = t
		transport = t
	}

	popts := append([]xconnpool.Option{
		xconnpool.WithConnectTimeout(cfg.ConnectTimeout),
		xconnpool.WithLogger(o.logger),
		xconnpool.WithObserver(o.observer),
	}, o.poolOpts...)
	if c.pool, err = xconnpool.New(transport, popts...); err != nil {
		return nil, err
	}

	prober := o.prober
	if prober == nil {
		if prober, err = xmongo.NewProber(c.pool, xmongo.WithLogger(o.logger), xmongo.WithObserver(o.observer)); err != nil {
			return nil, err
		}
	}

	mopts := []xtopo.Option{
		xtopo.WithReplicaSet(r.replicaSet),
		xtopo.WithConnectTimeout(cfg.ConnectTimeout),
		xtopo.WithCacheLifetime(cfg.CacheLifetime),
		xtopo.WithRefreshInterval(cfg.RefreshInterval),
		xtopo.WithChangeHook(c.onTopologyChange),
		xtopo.WithLogger(o.logger),
		xtopo.WithObserver(o.observer),
	}
	if cfg.FailureBackoff > 0 {
		mopts = append(mopts, xtopo.WithFailureBackoff(cfg.FailureBackoff))
	}
	if c.monitor, err = xtopo.NewMonitor(r.seeds, prober, append(mopts, o.topologyOpts...)...); err != nil {
		return nil, err
	}
	c.seeds = c.monitor.Seeds()

	ropts := []xreadpref.ResolverOption{xreadpref.WithLogger(o.logger), xreadpref.WithObserver(o.observer)}
	if o.rand != nil {
		ropts = append(ropts, xreadpref.WithRand(o.rand))
	}
	c.resolver = xreadpref.NewResolver(ropts...)

	if c.dbs, err = xlru.New[string, *Database](xlru.Config{Size: DefaultDatabaseCacheSize}); err != nil {
		return nil, err
	}

	c.retryer = xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewPredicateRetry(2, shouldReroute)),
		xretry.WithBackoffPolicy(xretry.NewNoBackoff()),
		xretry.WithOnRetry(func(attempt int, err error) {
			c.logger.Warn(context.Background(), "rerouting after failure", xlog.Count(attempt), xlog.Err(err))
		}),
	)
	return c, nil
}

// ID 客户端实例标识，出现在该客户端的每条日志中。
func (c *Client) ID() string { return c.id }

// String 返回第一个种子地址。
func (c *Client) String() string {
	if len(c.seeds) == 0 {
		return ""
	}
	return c.seeds[0]
}

// Connect 标记客户端就绪并启动后台拓扑刷新（若配置了刷新周期）。幂等。
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.connected {
		return nil
	}
	// 后台循环的生命周期跟随客户端而不是本次调用
	if err := c.monitor.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	c.connected = true
	c.logger.Info(ctx, "client connected", xlog.Address(c.String()))
	return nil
}

// Close 停止拓扑刷新并关闭全部连接。再次调用返回 ErrClosed。
func (c *Client) Close(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	err := c.release(ctx)
	c.logger.Info(ctx, "client closed")
	return err
}

func (c *Client) release(ctx context.Context) error {
	var errs []error
	if c.monitor != nil {
		errs = append(errs, c.monitor.Close())
	}
	if c.pool != nil {
		errs = append(errs, c.pool.CloseAll(ctx))
	}
	if c.dbs != nil {
		c.dbs.Close()
	}
	if c.ownTransport != nil {
		c.ownTransport.Close()
	}
	return errors.Join(errs...)
}

func (c *Client) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		return ErrClosed
	case !c.connected:
		return ErrNotConnected
	}
	return nil
}

// ReadPreference 返回客户端级读偏好。
func (c *Client) ReadPreference() xreadpref.ReadPref {
	return *c.readPref.Load()
}

// SetReadPreference 校验并替换客户端级读偏好，校验失败时保持原值。
func (c *Client) SetReadPreference(rp xreadpref.ReadPref) error {
	n, err := xreadpref.New(rp.Mode, xreadpref.WithTagSets(rp.TagSets...), xreadpref.WithAcceptableLatency(rp.AcceptableLatency))
	if err != nil {
		return err
	}
	old := c.readPref.Swap(&n)
	if !old.Equal(n) {
		c.logger.Info(context.Background(), "read preference changed", xlog.Mode(n))
	}
	return nil
}

// ApplyConfig 应用热更新后的配置。目前只有读偏好支持在运行时变更。
func (c *Client) ApplyConfig(cfg Config) error {
	return c.SetReadPreference(cfg.ReadPreference)
}

// CurrentTopology 返回当前拓扑快照，过期时先刷新。
func (c *Client) CurrentTopology(ctx context.Context) (*xtopo.Snapshot, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.monitor.Snapshot(ctx, false)
}

// ResolveServerFor 返回 rp 选中的节点地址。
func (c *Client) ResolveServerFor(ctx context.Context, rp xreadpref.ReadPref) (string, error) {
	snap, err := c.CurrentTopology(ctx)
	if err != nil {
		return "", err
	}
	h, err := c.resolver.Select(ctx, snap, rp)
	if err != nil {
		return "", err
	}
	return h.Address, nil
}

// GetConnection 返回 address 上的连接。打开失败时该节点在当前快照中被标记为不健康。
func (c *Client) GetConnection(ctx context.Context, address string) (xconnpool.Conn, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := c.ready(); err != nil {
		return nil, err
	}
	conn, err := c.pool.Acquire(ctx, address)
	if err != nil {
		if _, ok := xconnpool.IsConnectError(err); ok {
			c.monitor.MarkUnhealthy(address)
		}
		return nil, err
	}
	return conn, nil
}

// Execute 按 rp 选择节点、取得连接并执行 fn。
// 连接失败或 fn 的错误导致连接失效时，使连接失效、标记节点不健康、强制刷新拓扑后重新解析一次。
// fn 返回的其他错误原样返回，不重试。
func (c *Client) Execute(ctx context.Context, rp xreadpref.ReadPref, fn func(ctx context.Context, conn xconnpool.Conn) error) (err error) {
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := c.ready(); err != nil {
		return err
	}
	ctx, span := xmetrics.Start(ctx, c.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "execute",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("mode", rp.Mode.String())},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	attempt := 0
	return c.retryer.Do(ctx, func(ctx context.Context) error {
		attempt++
		snap, err := c.monitor.Snapshot(ctx, attempt > 1)
		if err != nil {
			return err
		}
		host, err := c.resolver.Select(ctx, snap, rp)
		if err != nil {
			return err
		}
		conn, err := c.pool.Acquire(ctx, host.Address)
		if err != nil {
			if _, ok := xconnpool.IsConnectError(err); ok {
				c.evict(ctx, host.Address)
			}
			return err
		}
		if err := fn(ctx, conn); err != nil {
			if !conn.IsOpen() {
				c.evict(ctx, host.Address)
				return &TransportError{Address: host.Address, Err: err}
			}
			return err
		}
		return nil
	})
}

// evict 使连接失效并在当前快照中把节点标记为不健康。
func (c *Client) evict(ctx context.Context, address string) {
	// 调用方超时也要完成失效
	if err := c.pool.Invalidate(context.WithoutCancel(ctx), address); err != nil {
		c.logger.Debug(ctx, "close invalidated connection failed", xlog.Address(address), xlog.Err(err))
	}
	c.monitor.MarkUnhealthy(address)
}

// onTopologyChange 关闭变为不可用的节点上的连接。
func (c *Client) onTopologyChange(ch xtopo.Change) {
	ctx := context.Background()
	for _, addr := range ch.Down {
		if err := c.pool.Invalidate(ctx, addr); err != nil {
			c.logger.Debug(ctx, "close connection of down host failed", xlog.Address(addr), xlog.Err(err))
		}
	}
	if ch.PrimaryChanged {
		var primary string
		if ps := ch.Current.Primaries(); len(ps) == 1 {
			primary = ps[0].Address
		}
		c.logger.Info(ctx, "primary changed", xlog.Address(primary))
	}
}

// Connections 返回当前持有连接的节点地址。
func (c *Client) Connections() []string {
	return c.pool.Addresses()
}

// Stats 返回运行统计。
func (c *Client) Stats() Stats {
	return Stats{Topology: c.monitor.Stats(), Pool: c.pool.Stats()}
}
