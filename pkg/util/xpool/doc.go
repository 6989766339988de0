// Package xpool 提供泛型 worker pool。
//
// 拓扑监视器用它异步派发拓扑变化回调：刷新路径只做非阻塞 Submit，
// 回调慢或 panic 都不会拖住刷新。
//
// 注意事项：
//   - Submit 永不阻塞，队列满时返回 [ErrQueueFull]
//   - Close 等待队列中剩余任务处理完成，不可在 handler 内调用
//   - handler panic 被恢复并记录日志，任务不会重试
package xpool
