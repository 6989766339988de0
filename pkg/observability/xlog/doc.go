// Package xlog 是 xreplset 各组件共用的结构化日志库，基于 log/slog。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、文件轮转）
//   - 动态级别调整（运行时热更新，派生 logger 共享级别）
//   - 拓扑/路由领域的便捷属性（Address、Role、Mode、ReplicaSet 等）
//   - 全局 Logger，供 CLI 等简单场景使用
//   - [Discard]：丢弃一切输出的 Logger，库组件的默认值
//
// # 创建 Logger
//
// Builder 采用 first-error-wins：遇到第一个配置错误后，后续 Set 操作不再生效，
// 错误在 [Builder.Build] 时返回。
//
//	logger, cleanup, err := xlog.New().
//	    SetLevel(xlog.LevelDebug).
//	    SetFormat("json").
//	    SetRotation("/var/log/xreplset/client.log").
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
// # 库组件约定
//
// xtopo、xreadpref、xconnpool、xreplset 均通过 WithLogger 选项注入 Logger，
// 未注入时使用 [Discard]，库本身不向 stderr 输出任何内容。
package xlog
