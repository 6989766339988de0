package xconnpool

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect 所有连接失败的哨兵，与 *ConnectError 配合 errors.Is 使用。
	ErrConnect = errors.New("xconnpool: connect failed")

	ErrPoolClosed    = errors.New("xconnpool: pool closed")
	ErrNilTransport  = errors.New("xconnpool: transport cannot be nil")
	ErrNilContext    = errors.New("xconnpool: nil context")
	ErrEmptyAddress  = errors.New("xconnpool: empty address")
	errNilConnection = errors.New("transport returned nil connection")
)

// ConnectError 连接打开失败。Timeout 表示超过了连接超时。
type ConnectError struct {
	Address string
	Timeout bool
	Err     error
}

func (e *ConnectError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("xconnpool: connect %s: timeout: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("xconnpool: connect %s: %v", e.Address, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrConnect) 成立。
func (e *ConnectError) Is(target error) bool { return target == ErrConnect }

// Retryable 连接失败总是值得在刷新拓扑后重新路由一次，即使底层是熔断错误。
func (e *ConnectError) Retryable() bool { return true }

// IsConnectError 提取 *ConnectError。
func IsConnectError(err error) (*ConnectError, bool) {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
