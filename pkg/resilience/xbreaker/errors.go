package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

var (
	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = gobreaker.ErrOpenState
	// ErrTooManyRequests 半开状态下请求过多
	ErrTooManyRequests = gobreaker.ErrTooManyRequests

	ErrNilContext = errors.New("xbreaker: context cannot be nil")
	ErrNilFunc    = errors.New("xbreaker: function cannot be nil")
)

// BreakerError 熔断器拒绝执行时返回的错误
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error { return e.Err }

// Retryable 熔断错误不应被重试。
func (e *BreakerError) Retryable() bool { return false }

// wrapBreakerError 只包装直接的 sentinel error。
// 状态从错误类型推导，不在事后查询 State()。
func wrapBreakerError(err error, name string) error {
	switch {
	case err == nil:
		return nil
	case err == gobreaker.ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case err == gobreaker.ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	default:
		return err
	}
}

// IsOpen 检查错误是否是熔断器打开错误
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsBreakerError 检查错误是否来自熔断器（Open 或请求过多）
func IsBreakerError(err error) bool {
	return IsOpen(err) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
