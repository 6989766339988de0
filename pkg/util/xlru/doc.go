// Package xlru 基于 hashicorp/golang-lru/v2/expirable 的泛型 LRU 缓存。
//
// 客户端用它缓存数据库句柄：Database(name) 对同一名称返回同一句柄，
// 条目数超过上限时淘汰最久未访问的句柄。
//
// 注意事项：
//   - 淘汰回调在锁内同步执行，严禁在回调中调用 Cache 自身方法
//   - TTL > 0 时底层会启动清理 goroutine，用完应调用 Close
package xlru
