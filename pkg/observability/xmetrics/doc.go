// Package xmetrics 提供拓扑发现与路由组件共用的观测接口（metrics + tracing）。
//
// 组件只依赖 Observer/Span 两个接口；默认实现基于 OpenTelemetry。
// 未注入 Observer 时 [Start] 返回空跨度，调用方无需判空。
//
//	obs, _ := xmetrics.NewOTelObserver()
//	ctx, span := xmetrics.Start(ctx, obs, xmetrics.SpanOptions{
//		Component: "xtopo",
//		Operation: "refresh",
//		Kind:      xmetrics.KindClient,
//	})
//	defer func() { span.End(xmetrics.Result{Err: err}) }()
//
// # 指标命名
//
//   - xreplset.operation.total
//   - xreplset.operation.duration（秒）
//
// 统一属性：component / operation / status。
package xmetrics
