package xmongo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/omeyang/xreplset/internal/storageopt"
	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
)

const componentName = "xmongo"

// commandRunner 对 *mongo.Client 的最小抽象，便于单元测试注入。
type commandRunner interface {
	runCommand(ctx context.Context, database string, cmd any) (bson.Raw, error)
	ping(ctx context.Context) error
	disconnect(ctx context.Context) error
}

// clientRunner 基于 *mongo.Client 的 commandRunner。
type clientRunner struct {
	client *mongo.Client
}

func (r clientRunner) runCommand(ctx context.Context, database string, cmd any) (bson.Raw, error) {
	return r.client.Database(database).RunCommand(ctx, cmd).Raw()
}

func (r clientRunner) ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Nearest())
}

func (r clientRunner) disconnect(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

type dialFunc func(opts *options.ClientOptions) (commandRunner, error)

func dialMongo(opts *options.ClientOptions) (commandRunner, error) {
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, err
	}
	return clientRunner{client: client}, nil
}

// Transport 实现 xconnpool.Transport。每次 Open 建立一个只连接单个节点的客户端。
type Transport struct {
	opts     *Options
	logger   xlog.Logger
	detector *storageopt.SlowCommandDetector[CommandInfo]
	dial     dialFunc
	closed   atomic.Bool
}

// NewTransport 创建 Transport。
func NewTransport(opts ...Option) (*Transport, error) {
	o := applyOptions(opts)

	sc := storageopt.SlowCommandOptions[CommandInfo]{
		Threshold:      o.SlowCommandThreshold,
		AsyncWorkers:   DefaultAsyncSlowCommandWorkers,
		AsyncQueueSize: DefaultAsyncSlowCommandQueueSize,
	}
	if o.SlowCommandHook != nil {
		sc.SyncHook = o.SlowCommandHook
	}
	if o.AsyncSlowCommandHook != nil {
		sc.AsyncHook = o.AsyncSlowCommandHook
	}
	detector, err := storageopt.NewSlowCommandDetector(sc)
	if err != nil {
		return nil, fmt.Errorf("xmongo: %w", err)
	}

	return &Transport{
		opts:     o,
		logger:   o.Logger.With(xlog.Component(componentName)),
		detector: detector,
		dial:     dialMongo,
	}, nil
}

// clientOptions 构造只连 address 的客户端选项。
func (t *Transport) clientOptions(address string) *options.ClientOptions {
	co := options.Client().
		SetHosts([]string{address}).
		SetDirect(true).
		SetConnectTimeout(t.opts.ConnectTimeout).
		SetServerSelectionTimeout(t.opts.ConnectTimeout)
	if t.opts.Credential != nil {
		co.SetAuth(*t.opts.Credential)
	}
	if t.opts.AppName != "" {
		co.SetAppName(t.opts.AppName)
	}
	if t.opts.TLSConfig != nil {
		co.SetTLSConfig(t.opts.TLSConfig)
	}
	return co
}

// Open 实现 xconnpool.Transport。连接建立后立即 ping，失败时断开并返回错误。
func (t *Transport) Open(ctx context.Context, address string) (xconnpool.Conn, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if address == "" {
		return nil, ErrEmptyAddress
	}
	if t.closed.Load() {
		return nil, ErrClosed
	}

	runner, err := t.dial(t.clientOptions(address))
	if err != nil {
		return nil, fmt.Errorf("xmongo: connect %s: %w", address, err)
	}
	pctx, cancel := storageopt.ProbeContext(ctx, t.opts.ConnectTimeout)
	defer cancel()
	if err := runner.ping(pctx); err != nil {
		derr := runner.disconnect(context.WithoutCancel(ctx))
		return nil, errors.Join(fmt.Errorf("xmongo: ping %s: %w", address, err), derr)
	}
	t.logger.Debug(ctx, "connection opened", xlog.Address(address))
	return newConn(address, runner, t), nil
}

// SlowCommands 返回累计慢命令次数。
func (t *Transport) SlowCommands() int64 {
	return t.detector.Count()
}

// Close 停止慢命令异步派发。已打开的连接由连接池负责关闭。幂等。
func (t *Transport) Close() {
	if t.closed.Swap(true) {
		return
	}
	t.detector.Close()
}
