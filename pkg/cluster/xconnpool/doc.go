// Package xconnpool 按节点地址缓存连接。
//
// 每个地址至多持有一个打开的 Conn。同一地址的首次并发使用只会打开一次连接
// （xkeylock 按地址互斥），打开过程受连接超时约束并经过按地址划分的熔断器，
// 连续失败的节点在冷却期内快速失败。
//
// 打开失败统一返回 *ConnectError，errors.Is(err, ErrConnect) 成立。
package xconnpool

//go:generate mockgen -source=conn.go -destination=mock_conn_test.go -package=xconnpool
