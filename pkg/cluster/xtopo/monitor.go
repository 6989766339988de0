package xtopo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
	"github.com/omeyang/xreplset/pkg/resilience/xretry"
	"github.com/omeyang/xreplset/pkg/util/xpool"
)

const (
	componentName = "xtopo"
	refreshKey    = "refresh"
	hookQueueSize = 64
	hookPoolName  = "xtopo-change"
)

// Monitor 跟踪副本集拓扑并缓存最新快照。所有方法并发安全。
type Monitor struct {
	seeds  []string
	prober Prober
	opts   options
	logger xlog.Logger

	current     atomic.Pointer[Snapshot]
	lastFailure atomic.Pointer[failure]
	group       singleflight.Group
	hooks       *xpool.Pool[Change]

	baseCtx    context.Context
	baseCancel context.CancelFunc
	inflight   sync.WaitGroup

	mu         sync.Mutex
	closed     atomic.Bool
	loopCancel context.CancelFunc
	loopDone   chan struct{}

	refreshes      atomic.Int64
	refreshErrors  atomic.Int64
	degradedServes atomic.Int64
	hooksDropped   atomic.Int64
}

type failure struct {
	at  time.Time
	err error
}

// Stats 运行统计。
type Stats struct {
	Refreshes      int64
	RefreshErrors  int64
	DegradedServes int64
	HooksDropped   int64
}

// NewMonitor 创建 Monitor。seeds 按配置顺序作为刷新候选，重复和空地址被剔除。
// 创建时不发起任何网络请求。
func NewMonitor(seeds []string, prober Prober, opts ...Option) (*Monitor, error) {
	if prober == nil {
		return nil, ErrNilProber
	}
	clean := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s != "" && !slices.Contains(clean, s) {
			clean = append(clean, s)
		}
	}
	if len(clean) == 0 {
		return nil, ErrNoSeeds
	}

	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	m := &Monitor{
		seeds:  clean,
		prober: prober,
		opts:   o,
		logger: o.logger.With(xlog.Component(componentName), xlog.ReplicaSet(o.replicaSet)),
	}
	if len(o.hooks) > 0 {
		hooks := o.hooks
		pool, err := xpool.New(1, hookQueueSize, func(c Change) {
			for _, h := range hooks {
				h(c)
			}
		}, xpool.WithLogger(m.logger), xpool.WithName(hookPoolName))
		if err != nil {
			return nil, fmt.Errorf("xtopo: create hook pool: %w", err)
		}
		m.hooks = pool
	}
	m.baseCtx, m.baseCancel = context.WithCancel(context.Background())
	return m, nil
}

// Seeds 返回去重后的种子地址。
func (m *Monitor) Seeds() []string {
	return slices.Clone(m.seeds)
}

// Current 返回最近发布的快照，不触发刷新。尚无快照时返回 nil。
func (m *Monitor) Current() *Snapshot {
	return m.current.Load()
}

// Snapshot 返回当前拓扑快照。
//
// 缓存未过期且 force 为 false 时直接返回缓存。否则发起刷新；并发调用共享同一次
// 刷新，调用方取消 ctx 只会让自己提前返回，刷新本身继续完成。
// 刷新失败且已有快照时返回其 Degraded 副本；从未成功过则返回 ErrStaleTopology。
// 失败后 WithFailureBackoff 时间内的再次调用直接返回上述结果，不会重新探测。
func (m *Monitor) Snapshot(ctx context.Context, force bool) (*Snapshot, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if m.closed.Load() {
		return nil, ErrClosed
	}
	cur := m.current.Load()
	now := m.opts.now()
	if !force && m.fresh(cur, now) {
		return cur, nil
	}
	if f := m.lastFailure.Load(); f != nil && now.Sub(f.at) < m.opts.failureBackoff {
		if cur != nil {
			m.degradedServes.Add(1)
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrStaleTopology, f.err)
	}

	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.sharedRefresh(ctx, force)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap, _ := res.Val.(*Snapshot)
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fresh 报告 snap 是否可以直接作为缓存返回。
func (m *Monitor) fresh(snap *Snapshot, now time.Time) bool {
	return snap != nil && !snap.degraded && snap.Age(now) < m.opts.cacheLifetime
}

// sharedRefresh 是 singleflight 中执行的刷新体。
// 非强制调用在进入前先复查缓存：上一轮刷新可能刚刚发布了新快照。
func (m *Monitor) sharedRefresh(ctx context.Context, force bool) (*Snapshot, error) {
	if !m.enter() {
		return nil, ErrClosed
	}
	defer m.inflight.Done()
	if !force {
		if cur := m.current.Load(); m.fresh(cur, m.opts.now()) {
			return cur, nil
		}
	}
	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(m.baseCtx, cancel)
	defer stop()
	defer cancel()
	return m.refresh(rctx)
}

func (m *Monitor) enter() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return false
	}
	m.inflight.Add(1)
	return true
}

func (m *Monitor) refresh(ctx context.Context) (*Snapshot, error) {
	prev := m.current.Load()
	candidates := m.candidates(prev)
	m.refreshes.Add(1)

	ctx, span := xmetrics.Start(ctx, m.opts.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "refresh",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.Int("candidates", len(candidates))},
	})

	var (
		next        int
		source      string
		unreachable = make(map[string]struct{})
	)
	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(len(candidates))),
		xretry.WithBackoffPolicy(xretry.NewNoBackoff()),
		xretry.WithAttemptTimeout(m.opts.connectTimeout),
		xretry.WithOnRetry(func(attempt int, err error) {
			m.logger.Warn(ctx, "status probe failed, trying next host",
				xlog.Address(candidates[attempt-1]), xlog.Err(err))
		}),
	)
	reply, err := xretry.DoWithResult(ctx, retryer, func(actx context.Context) (*StatusReply, error) {
		addr := candidates[next]
		next++
		r, err := m.probe(actx, addr)
		if err != nil {
			if !errors.Is(err, ErrReplicaSetMismatch) {
				unreachable[addr] = struct{}{}
			}
			return nil, fmt.Errorf("probe %s: %w", addr, err)
		}
		source = addr
		return r, nil
	})

	now := m.opts.now()
	if err != nil {
		m.refreshErrors.Add(1)
		m.lastFailure.Store(&failure{at: now, err: err})
		span.End(xmetrics.Result{Err: err})
		m.logger.Error(ctx, "topology refresh failed", xlog.Count(len(candidates)), xlog.Err(err))
		if prev == nil {
			return nil, fmt.Errorf("%w: %w", ErrStaleTopology, err)
		}
		m.degradedServes.Add(1)
		return m.degrade(), nil
	}

	m.lastFailure.Store(nil)
	snap := buildSnapshot(reply, source, now, unreachable)
	old := m.current.Swap(snap)
	m.notify(old, snap)

	if n := len(snap.Primaries()); n > 1 {
		m.logger.Warn(ctx, "status reports more than one primary", xlog.Count(n), xlog.Address(source))
	}
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{
		xmetrics.String("source", source),
		xmetrics.Int("hosts", snap.Len()),
	}})
	m.logger.Debug(ctx, "topology refreshed", xlog.Address(source), xlog.Count(snap.Len()))
	return snap, nil
}

// degrade 将当前快照替换为 Degraded 副本并返回。
func (m *Monitor) degrade() *Snapshot {
	for {
		cur := m.current.Load()
		if cur.degraded {
			return cur
		}
		d := cur.asDegraded()
		if m.current.CompareAndSwap(cur, d) {
			return d
		}
	}
}

func (m *Monitor) probe(ctx context.Context, addr string) (*StatusReply, error) {
	start := time.Now()
	r, err := m.prober.Probe(ctx, addr)
	if err != nil {
		return nil, err
	}
	if r == nil || (!r.Standalone && len(r.Members) == 0) {
		return nil, ErrEmptyReply
	}
	reply := *r
	if reply.RTT <= 0 {
		reply.RTT = time.Since(start)
	}
	if want := m.opts.replicaSet; want != "" && (reply.Standalone || reply.SetName != want) {
		return nil, fmt.Errorf("%w: want %q, got %q", ErrReplicaSetMismatch, want, reply.SetName)
	}
	return &reply, nil
}

// candidates 刷新候选顺序：上次的主节点、种子、上次快照中的其余节点（健康的在前）。
func (m *Monitor) candidates(prev *Snapshot) []string {
	out := make([]string, 0, len(m.seeds)+4)
	add := func(addr string) {
		if addr != "" && !slices.Contains(out, addr) {
			out = append(out, addr)
		}
	}
	if prev != nil {
		for _, p := range prev.Primaries() {
			add(p.Address)
		}
	}
	for _, s := range m.seeds {
		add(s)
	}
	if prev != nil {
		for _, h := range prev.hosts {
			if h.Healthy {
				add(h.Address)
			}
		}
		for _, h := range prev.hosts {
			add(h.Address)
		}
	}
	return out
}

// MarkUnhealthy 发布 addr 被标记为不健康的快照副本。
// 地址未知或已不健康时返回 false。
func (m *Monitor) MarkUnhealthy(addr string) bool {
	for {
		cur := m.current.Load()
		if cur == nil {
			return false
		}
		if h, ok := cur.Host(addr); !ok || !h.Healthy {
			return false
		}
		next := cur.withHostDown(addr)
		if m.current.CompareAndSwap(cur, next) {
			m.logger.Warn(context.Background(), "host marked unhealthy", xlog.Address(addr))
			m.notify(cur, next)
			return true
		}
	}
}

func (m *Monitor) notify(prev, cur *Snapshot) {
	if m.hooks == nil {
		return
	}
	c := diff(prev, cur)
	if c.Empty() {
		return
	}
	if err := m.hooks.Submit(c); err != nil {
		m.hooksDropped.Add(1)
		m.logger.Warn(context.Background(), "topology change dropped", xlog.Err(err))
	}
}

// Start 启动后台刷新循环。未配置 WithRefreshInterval 或已在运行时为空操作。
// 循环在 ctx 取消、Stop 或 Close 时退出。
func (m *Monitor) Start(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed.Load() {
		return ErrClosed
	}
	if m.opts.refreshInterval <= 0 || m.loopCancel != nil {
		return nil
	}
	lctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.loopCancel = cancel
	m.loopDone = done
	go m.loop(lctx, done)
	return nil
}

// Stop 停止后台刷新循环并等待其退出。幂等。
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.loopCancel, m.loopDone
	m.loopCancel, m.loopDone = nil, nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.opts.refreshInterval)
	defer ticker.Stop()
	for {
		if _, err := m.Snapshot(ctx, true); err != nil && ctx.Err() == nil {
			m.logger.Warn(ctx, "background refresh failed", xlog.Err(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close 停止后台循环、取消在途刷新并等待变更回调执行完。重复调用返回 nil。
func (m *Monitor) Close() error {
	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		return nil
	}
	m.closed.Store(true)
	m.mu.Unlock()

	m.Stop()
	m.baseCancel()
	m.inflight.Wait()
	if m.hooks != nil {
		return m.hooks.Close()
	}
	return nil
}

// Stats 返回运行统计。
func (m *Monitor) Stats() Stats {
	return Stats{
		Refreshes:      m.refreshes.Load(),
		RefreshErrors:  m.refreshErrors.Load(),
		DegradedServes: m.degradedServes.Load(),
		HooksDropped:   m.hooksDropped.Load(),
	}
}
