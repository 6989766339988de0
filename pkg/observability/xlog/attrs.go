package xlog

import (
	"log/slog"
	"time"
)

// 常用属性 Key。
const (
	KeyError      = "error"
	KeyDuration   = "duration"
	KeyCount      = "count"
	KeyComponent  = "component"
	KeyOperation  = "operation"
	KeyAddress    = "address"
	KeyRole       = "role"
	KeyMode       = "read_mode"
	KeyReplicaSet = "replica_set"
	KeyClientID   = "client_id"
)

// Err 创建错误属性。err 为 nil 时返回空属性（被 slog 忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性（人类可读格式）。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Count 创建计数属性
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Address 创建节点地址属性（host:port）
func Address(addr string) slog.Attr {
	return slog.String(KeyAddress, addr)
}

// Role 创建节点角色属性，接受任意 fmt.Stringer（如 xtopo.Role）。
func Role(r interface{ String() string }) slog.Attr {
	return slog.String(KeyRole, r.String())
}

// Mode 创建读偏好模式属性
func Mode(m interface{ String() string }) slog.Attr {
	return slog.String(KeyMode, m.String())
}

// ReplicaSet 创建副本集名称属性。空名称（单机部署）返回空属性。
func ReplicaSet(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String(KeyReplicaSet, name)
}

// ClientID 创建客户端实例 ID 属性
func ClientID(id string) slog.Attr {
	return slog.String(KeyClientID, id)
}
