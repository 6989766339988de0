// Package xkeylock 提供基于 key 的进程内互斥锁。
//
// 连接池以节点地址为 key：同一地址的并发建连被串行化，
// 不同地址之间互不阻塞。条目按引用计数回收，无需手动清理。
//
//	h, err := locker.Acquire(ctx, "db1:27017")
//	if err != nil {
//	    return err
//	}
//	defer h.Unlock()
package xkeylock
