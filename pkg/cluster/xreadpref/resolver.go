package xreadpref

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/omeyang/xreplset/pkg/cluster/xtopo"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

const componentName = "xreadpref"

// Rand 随机源，返回 [0, n) 内的整数。*rand.Rand 满足该接口。
type Rand interface {
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// ResolverOption Resolver 配置选项
type ResolverOption func(*Resolver)

// WithRand 注入随机源，测试中传入固定种子即可得到确定的选择。nil 忽略。
func WithRand(r Rand) ResolverOption {
	return func(res *Resolver) {
		if r != nil {
			res.rand = &lockedRand{r: r}
		}
	}
}

// WithLogger 设置日志记录器，nil 忽略。
func WithLogger(l xlog.Logger) ResolverOption {
	return func(res *Resolver) {
		if l != nil {
			res.logger = l
		}
	}
}

// WithObserver 设置可观测性观察者，nil 忽略。
func WithObserver(obs xmetrics.Observer) ResolverOption {
	return func(res *Resolver) {
		if obs != nil {
			res.observer = obs
		}
	}
}

// Resolver 读偏好解析器。无内部状态（随机源除外），可并发使用。
type Resolver struct {
	rand     Rand
	logger   xlog.Logger
	observer xmetrics.Observer
}

// NewResolver 创建解析器。默认随机源为按时间播种的 PCG。
func NewResolver(opts ...ResolverOption) *Resolver {
	now := uint64(time.Now().UnixNano())
	r := &Resolver{
		rand:     &lockedRand{r: rand.New(rand.NewPCG(now, now>>1|1))},
		logger:   xlog.Discard(),
		observer: xmetrics.NoopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	r.logger = r.logger.With(xlog.Component(componentName))
	return r
}

// Select 针对 snap 解析出一个目标节点。
func (r *Resolver) Select(ctx context.Context, snap *xtopo.Snapshot, rp ReadPref) (xtopo.Host, error) {
	if snap == nil {
		return xtopo.Host{}, ErrNilSnapshot
	}
	if err := rp.Validate(); err != nil {
		return xtopo.Host{}, err
	}
	ctx, span := xmetrics.Start(ctx, r.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "select",
		Attrs:     []xmetrics.Attr{xmetrics.String("mode", rp.Mode.String())},
	})
	h, err := r.selectHost(ctx, snap, rp)
	if err != nil {
		span.End(xmetrics.Result{Err: err})
		return xtopo.Host{}, err
	}
	span.End(xmetrics.Result{Attrs: []xmetrics.Attr{xmetrics.String("address", h.Address)}})
	return h, nil
}

func (r *Resolver) selectHost(ctx context.Context, snap *xtopo.Snapshot, rp ReadPref) (xtopo.Host, error) {
	healthy := filter(snap.Hosts(), func(h xtopo.Host) bool { return h.Healthy })

	// 单机部署：唯一节点对任何模式都是 PRIMARY。
	if snap.Kind() == xtopo.KindSingle {
		if len(healthy) == 0 {
			return xtopo.Host{}, fmt.Errorf("%w: standalone host is unhealthy", ErrNoMatchingServer)
		}
		return healthy[0], nil
	}

	candidates, err := applyTagSets(healthy, rp.TagSets)
	if err != nil {
		return xtopo.Host{}, err
	}

	switch rp.Mode {
	case Primary:
		return r.primary(ctx, candidates)
	case PrimaryPreferred:
		if h, err := r.primary(ctx, candidates); err == nil {
			return h, nil
		}
		return r.secondary(candidates, rp)
	case Secondary:
		return r.secondary(candidates, rp)
	case SecondaryPreferred:
		if h, err := r.secondary(candidates, rp); err == nil {
			return h, nil
		}
		return r.primary(ctx, candidates)
	case Nearest:
		// 任意角色的健康节点都参与延迟窗口选择。
		if len(candidates) == 0 {
			return xtopo.Host{}, fmt.Errorf("%w: mode nearest", ErrNoMatchingServer)
		}
		return r.pickWithinWindow(candidates, rp.Window()), nil
	default:
		return xtopo.Host{}, fmt.Errorf("%w: unknown mode %d", ErrInvalidReadPref, uint8(rp.Mode))
	}
}

// applyTagSets 取第一个至少匹配一个节点的标签集。空列表不过滤。
func applyTagSets(hosts []xtopo.Host, sets []TagSet) ([]xtopo.Host, error) {
	if len(sets) == 0 {
		return hosts, nil
	}
	for _, set := range sets {
		matched := filter(hosts, func(h xtopo.Host) bool { return h.MatchesTags(set) })
		if len(matched) > 0 {
			return matched, nil
		}
	}
	return nil, fmt.Errorf("%w: no host matches tag sets %v", ErrNoMatchingServer, sets)
}

func (r *Resolver) primary(ctx context.Context, hosts []xtopo.Host) (xtopo.Host, error) {
	primaries := filter(hosts, func(h xtopo.Host) bool { return h.Role == xtopo.RolePrimary })
	switch len(primaries) {
	case 0:
		return xtopo.Host{}, fmt.Errorf("%w: no primary available", ErrNoMatchingServer)
	case 1:
		return primaries[0], nil
	default:
		addrs := make([]string, len(primaries))
		for i, p := range primaries {
			addrs[i] = p.Address
		}
		r.logger.Warn(ctx, "refusing to route to ambiguous primary",
			xlog.Count(len(primaries)), slog.Any("addresses", addrs))
		return xtopo.Host{}, fmt.Errorf("%w: %v", ErrAmbiguousPrimary, addrs)
	}
}

func (r *Resolver) secondary(hosts []xtopo.Host, rp ReadPref) (xtopo.Host, error) {
	secondaries := filter(hosts, func(h xtopo.Host) bool { return h.Role == xtopo.RoleSecondary })
	if len(secondaries) == 0 {
		return xtopo.Host{}, fmt.Errorf("%w: no secondary available", ErrNoMatchingServer)
	}
	return r.pickWithinWindow(secondaries, rp.Window()), nil
}

// pickWithinWindow 保留 ping 不超过最小值加窗口的节点，再均匀随机选择。hosts 非空。
func (r *Resolver) pickWithinWindow(hosts []xtopo.Host, window time.Duration) xtopo.Host {
	lowest := hosts[0].PingMillis
	for _, h := range hosts[1:] {
		lowest = min(lowest, h.PingMillis)
	}
	limit := lowest + window.Milliseconds()
	eligible := filter(hosts, func(h xtopo.Host) bool { return h.PingMillis <= limit })
	if len(eligible) == 1 {
		return eligible[0]
	}
	return eligible[r.rand.IntN(len(eligible))]
}

func filter(hosts []xtopo.Host, keep func(xtopo.Host) bool) []xtopo.Host {
	out := make([]xtopo.Host, 0, len(hosts))
	for _, h := range hosts {
		if keep(h) {
			out = append(out, h)
		}
	}
	return out
}
