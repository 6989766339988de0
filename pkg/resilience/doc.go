// Package resilience 提供容错相关的子包。
//
// 子包列表：
//   - xretry: 基于 retry-go 的重试器，可组合重试与退避策略
//   - xbreaker: 基于 gobreaker 的熔断器
package resilience
