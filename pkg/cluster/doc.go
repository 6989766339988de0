// Package cluster 提供 MongoDB 副本集客户端相关的子包。
//
// 子包列表：
//   - xtopo: 拓扑快照与监视器，带缓存、失败退避与变更通知
//   - xreadpref: 读偏好模型与节点选择
//   - xconnpool: 按地址复用连接，单地址单次打开，带熔断
//   - xreplset: 组合以上组件的客户端门面
//
// 依赖方向为 xreplset → xconnpool / xreadpref → xtopo，
// 具体的 MongoDB 传输层位于 storage/xmongo。
package cluster
