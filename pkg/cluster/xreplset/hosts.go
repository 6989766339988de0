package xreplset

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/omeyang/xreplset/pkg/cluster/xtopo"
)

// defaultPort 地址未带端口时使用。
const defaultPort = 27017

// HostStatus 面向用户的节点状态。
type HostStatus struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Health 1 表示健康，0 表示不健康。
	Health int `json:"health"`
	// State 1 为 primary，2 为 secondary，其余为 0。
	State    int       `json:"state"`
	Role     string    `json:"role"`
	Ping     int64     `json:"ping"`
	LastPing time.Time `json:"lastPing"`
}

// Hosts 把当前快照投影为节点状态列表，顺序与快照一致。
func (c *Client) Hosts(ctx context.Context) ([]HostStatus, error) {
	snap, err := c.CurrentTopology(ctx)
	if err != nil {
		return nil, err
	}
	return hostStatuses(snap), nil
}

func hostStatuses(snap *xtopo.Snapshot) []HostStatus {
	hosts := snap.Hosts()
	out := make([]HostStatus, 0, len(hosts))
	for _, h := range hosts {
		host, port := splitAddress(h.Address)
		hs := HostStatus{
			Host:     host,
			Port:     port,
			State:    h.Role.State(),
			Role:     h.Role.String(),
			Ping:     h.PingMillis,
			LastPing: h.LastSeen,
		}
		if h.Healthy {
			hs.Health = 1
		}
		out = append(out, hs)
	}
	return out
}

func splitAddress(addr string) (string, int) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, defaultPort
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return host, defaultPort
	}
	return host, port
}
