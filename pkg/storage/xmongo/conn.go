package xmongo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// Reply 命令应答的原始文档。
type Reply struct {
	Raw bson.Raw
}

// Decode 把应答解码到 v。
func (r Reply) Decode(v any) error {
	if len(r.Raw) == 0 {
		return ErrEmptyReply
	}
	if err := bson.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("xmongo: decode reply: %w", err)
	}
	return nil
}

type conn struct {
	address string
	runner  commandRunner
	t       *Transport
	open    atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

var (
	_ xconnpool.Conn         = (*conn)(nil)
	_ xconnpool.CursorKiller = (*conn)(nil)
	_ xconnpool.Reply        = Reply{}
)

func newConn(address string, runner commandRunner, t *Transport) *conn {
	c := &conn{address: address, runner: runner, t: t}
	c.open.Store(true)
	return c
}

func (c *conn) Address() string { return c.address }

func (c *conn) IsOpen() bool { return c.open.Load() }

// Send 在 cmd.Database 上执行命令。网络错误会使连接失效，由连接池在下次获取时替换。
func (c *conn) Send(ctx context.Context, cmd xconnpool.Command) (_ xconnpool.Reply, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if !c.open.Load() {
		return nil, ErrConnClosed
	}
	name := commandName(cmd.Body)
	ctx, span := xmetrics.Start(ctx, c.t.opts.Observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "command",
		Kind:      xmetrics.KindClient,
		Attrs: []xmetrics.Attr{
			xmetrics.String("address", c.address),
			xmetrics.String("db", cmd.Database),
			xmetrics.String("command", name),
		},
	})
	defer func() { span.End(xmetrics.Result{Err: err}) }()

	start := time.Now()
	raw, err := c.runner.runCommand(ctx, cmd.Database, cmd.Body)
	elapsed := time.Since(start)
	c.t.detector.Observe(ctx, CommandInfo{
		Address:  c.address,
		Database: cmd.Database,
		Command:  name,
		Duration: elapsed,
	}, elapsed)
	if err != nil {
		if mongo.IsNetworkError(err) {
			c.open.Store(false)
		}
		return nil, fmt.Errorf("xmongo: %s on %s: %w", name, c.address, err)
	}
	return Reply{Raw: raw}, nil
}

// KillCursors 终止 namespace（db.collection）上的游标。
func (c *conn) KillCursors(ctx context.Context, namespace string, ids []int64) error {
	db, coll, ok := strings.Cut(namespace, ".")
	if !ok || db == "" || coll == "" {
		return fmt.Errorf("%w: %q", ErrInvalidNamespace, namespace)
	}
	_, err := c.Send(ctx, xconnpool.Command{
		Database: db,
		Body:     bson.D{{Key: "killCursors", Value: coll}, {Key: "cursors", Value: ids}},
	})
	return err
}

// Close 断开底层客户端。重复调用返回首次的结果。
func (c *conn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.open.Store(false)
		c.closeErr = c.runner.disconnect(ctx)
	})
	return c.closeErr
}

// commandName 取命令文档的第一个键。
func commandName(body any) string {
	switch b := body.(type) {
	case bson.D:
		if len(b) > 0 {
			return b[0].Key
		}
	case bson.Raw:
		if elems, err := b.Elements(); err == nil && len(elems) > 0 {
			return elems[0].Key()
		}
	case bson.M:
		if len(b) == 1 {
			for k := range b {
				return k
			}
		}
	}
	return "unknown"
}
