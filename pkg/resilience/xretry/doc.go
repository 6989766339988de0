// Package xretry 提供重试执行器，底层使用 [avast/retry-go/v5]。
//
// RetryPolicy 决定是否继续，BackoffPolicy 决定间隔。
// 拓扑探测与命令重路由都通过 [Retryer] 执行：
//
//	r := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	    xretry.WithAttemptTimeout(60*time.Second),
//	)
//	err := r.Do(ctx, func(ctx context.Context) error {
//	    return probe(ctx, addr)
//	})
//
// 返回 [NewPermanentError] 包装的错误会立即终止重试。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
