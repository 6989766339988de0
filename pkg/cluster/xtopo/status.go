package xtopo

import (
	"context"
	"time"
)

// Prober 向单个节点发送副本集状态命令。
// 目标是单机部署时返回 Standalone=true 的应答而不是错误。
type Prober interface {
	Probe(ctx context.Context, address string) (*StatusReply, error)
}

// ProberFunc 函数适配器。
type ProberFunc func(ctx context.Context, address string) (*StatusReply, error)

// Probe 实现 Prober。
func (f ProberFunc) Probe(ctx context.Context, address string) (*StatusReply, error) {
	return f(ctx, address)
}

// StatusReply 状态命令应答的解码结果。
type StatusReply struct {
	SetName    string
	Standalone bool
	Members    []MemberStatus
	// RTT 本次命令的往返耗时，作为 Self 成员的 ping。
	RTT time.Duration
}

// MemberStatus 应答中的单个成员。
type MemberStatus struct {
	Address       string
	State         int
	StateStr      string
	Healthy       bool
	PingMillis    int64
	LastHeartbeat time.Time
	Self          bool
	Tags          map[string]string
}

// buildSnapshot 把应答折算成快照。unreachable 中的地址在本轮探测中失败，
// 不论其他成员如何上报都视为不健康。
func buildSnapshot(reply *StatusReply, source string, now time.Time, unreachable map[string]struct{}) *Snapshot {
	if reply.Standalone {
		s := NewSnapshot("", now, Host{
			Address:    source,
			Role:       RolePrimary,
			Healthy:    true,
			PingMillis: reply.RTT.Milliseconds(),
			LastSeen:   now,
			StateStr:   RolePrimary.String(),
		})
		s.source = source
		return s
	}

	hosts := make([]Host, 0, len(reply.Members))
	for _, m := range reply.Members {
		h := Host{
			Address:    m.Address,
			Role:       RoleFromState(m.State),
			Healthy:    m.Healthy,
			PingMillis: m.PingMillis,
			LastSeen:   m.LastHeartbeat,
			Tags:       m.Tags,
			StateStr:   m.StateStr,
		}
		if m.Self {
			h.Healthy = true
			h.PingMillis = reply.RTT.Milliseconds()
			h.LastSeen = now
		} else if h.Healthy && h.LastSeen.IsZero() {
			h.LastSeen = now
		}
		if _, down := unreachable[h.Address]; down && !m.Self {
			h.Healthy = false
		}
		hosts = append(hosts, h)
	}
	s := NewSnapshot(reply.SetName, now, hosts...)
	s.source = source
	return s
}
