package xreplset

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
)

// Database 数据库句柄。未设置自身读偏好时使用客户端当前的读偏好。
type Database struct {
	client   *Client
	name     string
	readPref *xreadpref.ReadPref
}

// Collection 集合句柄。
type Collection struct {
	db       *Database
	name     string
	readPref *xreadpref.ReadPref
}

// Database 返回名为 name 的数据库句柄。同名句柄被缓存复用。
func (c *Client) Database(name string) *Database {
	return c.dbs.GetOrCreate(name, func() *Database {
		return &Database{client: c, name: name}
	})
}

// Collection 等价于 c.Database(db).Collection(coll)。
func (c *Client) Collection(db, coll string) *Collection {
	return c.Database(db).Collection(coll)
}

// Name 数据库名。
func (d *Database) Name() string { return d.name }

// Client 所属客户端。
func (d *Database) Client() *Client { return d.client }

// Collection 返回集合句柄，继承数据库的读偏好。
func (d *Database) Collection(name string) *Collection {
	return &Collection{db: d, name: name}
}

// WithReadPreference 返回使用 rp 的数据库句柄副本，原句柄不受影响。
func (d *Database) WithReadPreference(rp xreadpref.ReadPref) (*Database, error) {
	n, err := xreadpref.New(rp.Mode, xreadpref.WithTagSets(rp.TagSets...), xreadpref.WithAcceptableLatency(rp.AcceptableLatency))
	if err != nil {
		return nil, err
	}
	return &Database{client: d.client, name: d.name, readPref: &n}, nil
}

// ReadPreference 返回句柄生效的读偏好。
func (d *Database) ReadPreference() xreadpref.ReadPref {
	if d.readPref != nil {
		return *d.readPref
	}
	return d.client.ReadPreference()
}

// RunCommand 按读偏好选择节点并执行命令。cmd 应为有序文档（bson.D）。
func (d *Database) RunCommand(ctx context.Context, cmd any) (xconnpool.Reply, error) {
	return d.client.runCommand(ctx, d.name, d.ReadPreference(), cmd)
}

// Name 集合名。
func (c *Collection) Name() string { return c.name }

// Database 所属数据库。
func (c *Collection) Database() *Database { return c.db }

// Namespace 返回 "db.collection"。
func (c *Collection) Namespace() string { return c.db.name + "." + c.name }

// WithReadPreference 返回使用 rp 的集合句柄副本。
func (c *Collection) WithReadPreference(rp xreadpref.ReadPref) (*Collection, error) {
	n, err := xreadpref.New(rp.Mode, xreadpref.WithTagSets(rp.TagSets...), xreadpref.WithAcceptableLatency(rp.AcceptableLatency))
	if err != nil {
		return nil, err
	}
	return &Collection{db: c.db, name: c.name, readPref: &n}, nil
}

// ReadPreference 返回句柄生效的读偏好。
func (c *Collection) ReadPreference() xreadpref.ReadPref {
	if c.readPref != nil {
		return *c.readPref
	}
	return c.db.ReadPreference()
}

// RunCommand 在集合所属数据库上执行命令，使用集合的读偏好。
func (c *Collection) RunCommand(ctx context.Context, cmd any) (xconnpool.Reply, error) {
	if c.name == "" {
		return nil, ErrEmptyName
	}
	return c.db.client.runCommand(ctx, c.db.name, c.ReadPreference(), cmd)
}

func (c *Client) runCommand(ctx context.Context, db string, rp xreadpref.ReadPref, cmd any) (xconnpool.Reply, error) {
	if db == "" {
		return nil, ErrEmptyName
	}
	var reply xconnpool.Reply
	err := c.Execute(ctx, rp, func(ctx context.Context, conn xconnpool.Conn) error {
		r, err := conn.Send(ctx, xconnpool.Command{Database: db, Body: cmd})
		reply = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// DatabaseInfo listDatabases 应答中的单个数据库。
type DatabaseInfo struct {
	Name       string `bson:"name" json:"name"`
	SizeOnDisk int64  `bson:"sizeOnDisk" json:"sizeOnDisk"`
	Empty      bool   `bson:"empty" json:"empty"`
}

// DatabasesResult listDatabases 应答。
type DatabasesResult struct {
	Databases []DatabaseInfo `bson:"databases" json:"databases"`
	TotalSize int64          `bson:"totalSize" json:"totalSize"`
	OK        float64        `bson:"ok" json:"ok"`
}

// ListDatabases 在 admin 库上执行 listDatabases。
func (c *Client) ListDatabases(ctx context.Context) (*DatabasesResult, error) {
	reply, err := c.Database("admin").RunCommand(ctx, bson.D{{Key: "listDatabases", Value: 1}})
	if err != nil {
		return nil, err
	}
	var out DatabasesResult
	if err := reply.Decode(&out); err != nil {
		return nil, fmt.Errorf("xreplset: decode listDatabases: %w", err)
	}
	return &out, nil
}

// DropDatabase 客户端不提供删除数据库的能力，总是返回 ErrUnsupported。
func (c *Client) DropDatabase(context.Context, string) error {
	return ErrUnsupported
}

// KillCursor 尽力终止 serverAddr 上 namespace 的游标。
// 连接已不存在或 id 无效时返回 false 且不报错：服务端本来就不会确认游标是否已终止。
func (c *Client) KillCursor(ctx context.Context, serverAddr, namespace string, id int64) (bool, error) {
	if ctx == nil {
		return false, ErrNilContext
	}
	if err := c.ready(); err != nil {
		return false, err
	}
	if id <= 0 {
		return false, nil
	}
	conn, ok := c.pool.Lookup(serverAddr)
	if !ok {
		return false, nil
	}
	killer, ok := conn.(xconnpool.CursorKiller)
	if !ok {
		return false, ErrUnsupported
	}
	if err := killer.KillCursors(ctx, namespace, []int64{id}); err != nil {
		return false, err
	}
	return true, nil
}
