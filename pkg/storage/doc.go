// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xmongo: 基于 mongo-driver 的按节点命令通道、副本集状态探测与连接串解析
package storage
