// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xkeylock: 基于 key 的进程内互斥锁，支持 context 超时和非阻塞获取
//   - xlru: LRU 缓存，泛型支持、可选 TTL 过期
//   - xpool: 泛型 Worker Pool，可配置 worker/队列大小、优雅关闭
package util
