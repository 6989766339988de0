package xreplset

import (
	"errors"
	"fmt"

	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
)

var (
	// ErrClosed 表示客户端已关闭。
	ErrClosed = errors.New("xreplset: client closed")

	// ErrNotConnected 表示尚未调用 Connect。
	ErrNotConnected = errors.New("xreplset: client not connected")

	// ErrUnsupported 表示客户端不提供该能力，可用 errors.Is(err, errors.ErrUnsupported) 判断。
	ErrUnsupported = fmt.Errorf("xreplset: %w", errors.ErrUnsupported)

	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xreplset: context must not be nil")

	// ErrNilFunc 表示 Execute 的回调为 nil。
	ErrNilFunc = errors.New("xreplset: nil func")

	// ErrEmptyName 表示数据库或集合名为空。
	ErrEmptyName = errors.New("xreplset: empty name")
)

// TransportError 命令在已建立的连接上失败且连接随之失效。
type TransportError struct {
	Address string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("xreplset: transport %s: %v", e.Address, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// shouldReroute 报告是否应在刷新拓扑后重新解析目标节点。
func shouldReroute(err error) bool {
	if _, ok := xconnpool.IsConnectError(err); ok {
		return true
	}
	var te *TransportError
	return errors.As(err, &te)
}
