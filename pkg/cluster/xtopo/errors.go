package xtopo

import "errors"

var (
	ErrNoSeeds    = errors.New("xtopo: at least one seed address is required")
	ErrNilProber  = errors.New("xtopo: prober cannot be nil")
	ErrNilContext = errors.New("xtopo: nil context")
	ErrEmptyReply = errors.New("xtopo: empty status reply")
	ErrClosed     = errors.New("xtopo: monitor closed")

	// ErrReplicaSetMismatch 节点所属副本集与配置不符，该节点按探测失败处理。
	ErrReplicaSetMismatch = errors.New("xtopo: replica set name mismatch")

	// ErrStaleTopology 从未获取到快照且刷新失败。
	ErrStaleTopology = errors.New("xtopo: topology unavailable")
)
