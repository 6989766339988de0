package storageopt

import (
	"context"
	"time"
)

// DefaultProbeTimeout 未显式配置时单次节点探测的超时。
const DefaultProbeTimeout = 5 * time.Second

// ProbeContext 创建带探测超时的 context。
// timeout <= 0 时返回原始 ctx 与空 cancel。
// ctx 自身的 deadline 更早时以 ctx 为准。
func ProbeContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
