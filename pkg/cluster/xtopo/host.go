package xtopo

import (
	"maps"
	"time"
)

// Host 单个节点的描述。以值传递，Snapshot 只对外提供副本。
type Host struct {
	Address    string            `json:"address"`
	Role       Role              `json:"role"`
	Healthy    bool              `json:"healthy"`
	PingMillis int64             `json:"ping_ms"`
	LastSeen   time.Time         `json:"last_seen"`
	Tags       map[string]string `json:"tags,omitempty"`
	// StateStr 服务端原始状态文本，如 "PRIMARY"、"RECOVERING"。
	StateStr string `json:"state_str,omitempty"`
}

// MatchesTags 判断节点是否携带 tags 中的全部键值。空 tags 匹配任意节点。
func (h Host) MatchesTags(tags map[string]string) bool {
	for k, v := range tags {
		if got, ok := h.Tags[k]; !ok || got != v {
			return false
		}
	}
	return true
}

func (h Host) clone() Host {
	if h.Tags != nil {
		h.Tags = maps.Clone(h.Tags)
	}
	return h
}
