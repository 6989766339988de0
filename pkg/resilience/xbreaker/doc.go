// Package xbreaker 基于 [sony/gobreaker/v2] 的熔断器。
//
// 连接池为每个节点地址维护一个 Breaker：建连连续失败达到阈值后进入 Open，
// 在 Timeout 内直接快速失败，不再对故障节点发起拨号。
//
// 状态：
//   - StateClosed：正常，失败被统计
//   - StateOpen：熔断，请求直接失败
//   - StateHalfOpen：探测，允许 MaxRequests 个请求通过
//
// 熔断错误包装为 [BreakerError]，Retryable() 返回 false。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
