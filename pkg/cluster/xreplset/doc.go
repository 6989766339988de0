// Package xreplset 提供面向 MongoDB 副本集的客户端门面。
//
// Client 组合三部分：
//   - xtopo.Monitor 维护拓扑快照，过期或失败后刷新
//   - xreadpref.Resolver 按读偏好从快照中选出目标节点
//   - xconnpool.Pool 按地址复用连接
//
// 每个操作的路径：解析读偏好 → 取得快照 → 选出节点 → 取得连接 → 发送命令。
// 连接失败或命令导致连接失效时，客户端使连接失效、把节点标记为不健康、
// 强制刷新拓扑后重新选择一次节点，仍失败才把错误返回给调用方。
//
// # 用法
//
//	client, err := xreplset.NewFromURI("mongodb://db1:27017,db2:27017/?replicaSet=rs0")
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	users := client.Collection("app", "users")
//	reply, err := users.RunCommand(ctx, bson.D{{Key: "count", Value: "users"}})
//
// # 能力缺口
//
// DropDatabase 返回 ErrUnsupported，可用 errors.Is(err, errors.ErrUnsupported) 判断。
//
// # 配置热更新
//
// LoadConfig / DecodeConfig 读取 koanf 标签的配置，配合 xconf.Config.Watch
// 与 Client.ApplyConfig 可在运行时更新读偏好。
package xreplset
