package xmongo

import "errors"

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xmongo: context must not be nil")

	// ErrClosed 表示 Transport 已关闭。
	ErrClosed = errors.New("xmongo: transport closed")

	// ErrConnClosed 表示连接已关闭或因网络错误失效。
	ErrConnClosed = errors.New("xmongo: connection closed")

	// ErrEmptyAddress 表示地址为空。
	ErrEmptyAddress = errors.New("xmongo: empty address")

	// ErrNilAcquirer 表示 Prober 缺少连接来源。
	ErrNilAcquirer = errors.New("xmongo: nil acquirer")

	// ErrEmptyReply 表示应答为空文档。
	ErrEmptyReply = errors.New("xmongo: empty reply")

	// ErrInvalidNamespace 表示命名空间不是 "db.collection" 形式。
	ErrInvalidNamespace = errors.New("xmongo: invalid namespace")

	// ErrInvalidURI 表示连接串无法解析。
	ErrInvalidURI = errors.New("xmongo: invalid connection string")
)

// codeNoReplicationEnabled 目标未以副本集模式运行时 replSetGetStatus 的错误码。
const codeNoReplicationEnabled = 76
