package xconnpool

import "context"

// Command 发往某个数据库的命令。Body 为有序文档，由 Transport 负责编码。
type Command struct {
	Database string
	Body     any
}

// Reply 命令应答，Decode 将其解码到 v。
type Reply interface {
	Decode(v any) error
}

// Conn 绑定单个节点的连接。由 Pool 独占生命周期，其他组件只借用。
type Conn interface {
	Address() string
	Send(ctx context.Context, cmd Command) (Reply, error)
	IsOpen() bool
	Close(ctx context.Context) error
}

// CursorKiller 可选能力：终止服务端游标。
type CursorKiller interface {
	KillCursors(ctx context.Context, namespace string, ids []int64) error
}

// Transport 打开到指定地址的连接。
type Transport interface {
	Open(ctx context.Context, address string) (Conn, error)
}

// TransportFunc 函数适配器。
type TransportFunc func(ctx context.Context, address string) (Conn, error)

// Open 实现 Transport。
func (f TransportFunc) Open(ctx context.Context, address string) (Conn, error) {
	return f(ctx, address)
}
