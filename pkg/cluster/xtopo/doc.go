// Package xtopo 维护副本集拓扑快照。
//
// Monitor 通过 Prober 向已知节点发送副本集状态命令，把应答折算成不可变的
// Snapshot 并原子发布。读路径无锁；同一时刻至多一次刷新在途，并发调用方共享
// 刷新结果。
//
// 刷新失败时不会丢弃上一份好快照，而是返回其 Degraded 副本继续服务。
// 从未成功获取过快照时返回 ErrStaleTopology。
//
// 基本用法：
//
//	mon, err := xtopo.NewMonitor([]string{"db1:27017", "db2:27017"}, prober,
//	    xtopo.WithReplicaSet("rs0"),
//	    xtopo.WithRefreshInterval(10*time.Second),
//	)
//	if err != nil { ... }
//	defer mon.Close()
//
//	snap, err := mon.Snapshot(ctx, false)
package xtopo
