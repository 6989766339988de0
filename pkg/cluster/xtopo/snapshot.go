package xtopo

import (
	"encoding/json"
	"time"
)

// Kind 快照所描述的部署形态。
type Kind uint8

const (
	KindReplicaSet Kind = iota
	// KindSingle 单机部署，唯一节点总是 PRIMARY。
	KindSingle
)

func (k Kind) String() string {
	if k == KindSingle {
		return "single"
	}
	return "replica_set"
}

// Snapshot 某一时刻的不可变拓扑视图。发布后不再修改，可在 goroutine 间共享。
type Snapshot struct {
	hosts      []Host
	setName    string
	capturedAt time.Time
	kind       Kind
	degraded   bool
	source     string
}

// NewSnapshot 创建快照。setName 为空表示单机部署。hosts 会被深拷贝。
func NewSnapshot(setName string, capturedAt time.Time, hosts ...Host) *Snapshot {
	s := &Snapshot{
		hosts:      make([]Host, len(hosts)),
		setName:    setName,
		capturedAt: capturedAt,
	}
	for i, h := range hosts {
		s.hosts[i] = h.clone()
	}
	if setName == "" {
		s.kind = KindSingle
	}
	return s
}

// Hosts 返回按上报顺序排列的节点副本。
func (s *Snapshot) Hosts() []Host {
	out := make([]Host, len(s.hosts))
	for i, h := range s.hosts {
		out[i] = h.clone()
	}
	return out
}

// Host 按地址查找节点。
func (s *Snapshot) Host(addr string) (Host, bool) {
	for _, h := range s.hosts {
		if h.Address == addr {
			return h.clone(), true
		}
	}
	return Host{}, false
}

// Primaries 返回全部健康的 PRIMARY 节点。正常情况下至多一个。
func (s *Snapshot) Primaries() []Host {
	var out []Host
	for _, h := range s.hosts {
		if h.Healthy && h.Role == RolePrimary {
			out = append(out, h.clone())
		}
	}
	return out
}

// Len 返回节点数。
func (s *Snapshot) Len() int { return len(s.hosts) }

func (s *Snapshot) ReplicaSetName() string { return s.setName }
func (s *Snapshot) CapturedAt() time.Time  { return s.capturedAt }
func (s *Snapshot) Kind() Kind             { return s.kind }

// Degraded 为 true 表示最近一次刷新失败，当前内容可能已过期。
func (s *Snapshot) Degraded() bool { return s.degraded }

// Source 返回读取状态的节点地址。
func (s *Snapshot) Source() string { return s.source }

// Age 返回相对 now 的快照年龄。
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.capturedAt)
}

func (s *Snapshot) copyOf() *Snapshot {
	c := *s
	c.hosts = s.Hosts()
	return &c
}

// withHostDown 返回 addr 被标记为不健康的副本。addr 不存在时返回 nil。
func (s *Snapshot) withHostDown(addr string) *Snapshot {
	idx := -1
	for i, h := range s.hosts {
		if h.Address == addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	c := s.copyOf()
	c.hosts[idx].Healthy = false
	return c
}

func (s *Snapshot) asDegraded() *Snapshot {
	c := s.copyOf()
	c.degraded = true
	return c
}

type snapshotJSON struct {
	ReplicaSet string    `json:"replica_set,omitempty"`
	Kind       string    `json:"kind"`
	CapturedAt time.Time `json:"captured_at"`
	Degraded   bool      `json:"degraded"`
	Source     string    `json:"source,omitempty"`
	Hosts      []Host    `json:"hosts"`
}

// MarshalJSON 实现 json.Marshaler。
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		ReplicaSet: s.setName,
		Kind:       s.kind.String(),
		CapturedAt: s.capturedAt,
		Degraded:   s.degraded,
		Source:     s.source,
		Hosts:      s.hosts,
	})
}
