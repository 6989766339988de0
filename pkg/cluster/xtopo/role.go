package xtopo

import (
	"fmt"
	"strings"
)

// Role 节点在副本集中的角色。
type Role uint8

const (
	RoleUnknown Role = iota
	RoleStartup
	RolePrimary
	RoleSecondary
)

// 服务端上报的数值状态。
const (
	stateStartup   = 0
	statePrimary   = 1
	stateSecondary = 2
	stateStartup2  = 5
)

// RoleFromState 将服务端数值状态映射为 Role。
func RoleFromState(state int) Role {
	switch state {
	case statePrimary:
		return RolePrimary
	case stateSecondary:
		return RoleSecondary
	case stateStartup, stateStartup2:
		return RoleStartup
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleStartup:
		return "STARTUP"
	case RolePrimary:
		return "PRIMARY"
	case RoleSecondary:
		return "SECONDARY"
	default:
		return "UNKNOWN"
	}
}

// State 返回对外报告用的数值状态：1 主节点，2 从节点，其余为 0。
func (r Role) State() int {
	switch r {
	case RolePrimary:
		return statePrimary
	case RoleSecondary:
		return stateSecondary
	default:
		return 0
	}
}

// MarshalText 实现 encoding.TextMarshaler。
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler，大小写不敏感。
func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "STARTUP":
		*r = RoleStartup
	case "PRIMARY":
		*r = RolePrimary
	case "SECONDARY":
		*r = RoleSecondary
	case "UNKNOWN", "":
		*r = RoleUnknown
	default:
		return fmt.Errorf("xtopo: unknown role %q", text)
	}
	return nil
}
