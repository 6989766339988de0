// Package storageopt 提供 pkg/storage 下驱动适配层共享的工具。
//
// 内部包，仅供 xmongo 等存储适配使用：
//   - 探测超时 context
//   - 探测与慢命令计数器
//   - 慢命令检测器（同步/异步钩子，异步钩子经 xpool 派发）
package storageopt
