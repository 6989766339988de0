// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别与文件轮转
//   - xmetrics: 统一的追踪与指标接口，提供 Noop 与 OpenTelemetry 实现
//
// 副本集相关组件都接受 WithLogger / WithObserver，未注入时保持静默。
package observability
