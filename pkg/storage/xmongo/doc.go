// Package xmongo 把 mongo-driver/v2 适配为副本集连接管理所需的外部协作者。
//
// # 组成
//
//   - Transport：实现 xconnpool.Transport，每个地址建立一个直连（direct）客户端
//   - conn：实现 xconnpool.Conn 与 xconnpool.CursorKiller，按数据库发送命令
//   - Reply：命令应答，Decode 使用 bson.Unmarshal
//   - Prober：实现 xtopo.Prober，发送 replSetGetStatus 并解码成员状态
//   - ParseURI：解析 mongodb:// 连接串，得到种子地址、副本集名和读偏好
//
// # 用法
//
//	transport, _ := xmongo.NewTransport(
//	    xmongo.WithConnectTimeout(5*time.Second),
//	    xmongo.WithSlowCommandThreshold(200*time.Millisecond),
//	)
//	defer transport.Close()
//
//	pool, _ := xconnpool.New(transport)
//	prober, _ := xmongo.NewProber(pool)
//	monitor, _ := xtopo.NewMonitor([]string{"db1:27017"}, prober)
//
// # 慢命令检测
//
// 命令耗时达到 WithSlowCommandThreshold 时触发钩子：
// WithSlowCommandHook 在请求路径上同步执行，WithAsyncSlowCommandHook 经 worker pool
// 异步执行，队列满时丢弃。
//
// # 单机部署
//
// 目标不是副本集成员时 replSetGetStatus 返回错误码 76，Prober 将其转换为
// Standalone=true 的应答，由 xtopo 折算为单节点快照。
package xmongo
