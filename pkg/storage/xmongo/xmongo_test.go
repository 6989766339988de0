package xmongo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/goleak"

	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// 测试辅助
// =============================================================================

type fakeRunner struct {
	mu          sync.Mutex
	replies     map[string]bson.Raw
	errs        map[string]error
	delay       time.Duration
	pingErr     error
	calls       []string
	disconnects int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{replies: map[string]bson.Raw{}, errs: map[string]error{}}
}

func (f *fakeRunner) runCommand(_ context.Context, database string, cmd any) (bson.Raw, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	name := commandName(cmd)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, database+"."+name)
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.replies[name], nil
}

func (f *fakeRunner) ping(context.Context) error { return f.pingErr }

func (f *fakeRunner) disconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func mustRaw(t *testing.T, doc any) bson.Raw {
	t.Helper()
	b, err := bson.Marshal(doc)
	require.NoError(t, err)
	return bson.Raw(b)
}

func newTestTransport(t *testing.T, runner *fakeRunner, opts ...Option) *Transport {
	t.Helper()
	tr, err := NewTransport(opts...)
	require.NoError(t, err)
	tr.dial = func(*options.ClientOptions) (commandRunner, error) { return runner, nil }
	t.Cleanup(tr.Close)
	return tr
}

var networkErr = mongo.CommandError{Code: 6, Message: "connection reset", Labels: []string{"NetworkError"}}

// =============================================================================
// Transport
// =============================================================================

func TestTransport_ClientOptions(t *testing.T) {
	tr, err := NewTransport(
		WithConnectTimeout(2*time.Second),
		WithCredential(options.Credential{Username: "u", Password: "p", PasswordSet: true}),
		WithAppName("svc"),
		WithConnectTimeout(-1),
	)
	require.NoError(t, err)
	defer tr.Close()

	co := tr.clientOptions("db1:27017")
	assert.Equal(t, []string{"db1:27017"}, co.Hosts)
	require.NotNil(t, co.Direct)
	assert.True(t, *co.Direct)
	require.NotNil(t, co.ConnectTimeout)
	assert.Equal(t, 2*time.Second, *co.ConnectTimeout)
	require.NotNil(t, co.ServerSelectionTimeout)
	assert.Equal(t, 2*time.Second, *co.ServerSelectionTimeout)
	require.NotNil(t, co.Auth)
	assert.Equal(t, "u", co.Auth.Username)
	require.NotNil(t, co.AppName)
	assert.Equal(t, "svc", *co.AppName)
	assert.Nil(t, co.TLSConfig)
}

func TestTransport_Open(t *testing.T) {
	runner := newFakeRunner()
	tr := newTestTransport(t, runner)

	c, err := tr.Open(context.Background(), "a:1")
	require.NoError(t, err)
	assert.Equal(t, "a:1", c.Address())
	assert.True(t, c.IsOpen())
	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.False(t, c.IsOpen())
	assert.Equal(t, 1, runner.disconnects)
}

func TestTransport_OpenPingFailure(t *testing.T) {
	runner := newFakeRunner()
	runner.pingErr = errors.New("server selection timeout")
	tr := newTestTransport(t, runner)

	_, err := tr.Open(context.Background(), "a:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping a:1")
	assert.Equal(t, 1, runner.disconnects)
}

func TestTransport_OpenDialFailure(t *testing.T) {
	tr := newTestTransport(t, newFakeRunner())
	dialErr := errors.New("bad options")
	tr.dial = func(*options.ClientOptions) (commandRunner, error) { return nil, dialErr }

	_, err := tr.Open(context.Background(), "a:1")
	assert.ErrorIs(t, err, dialErr)
}

func TestTransport_InvalidArgs(t *testing.T) {
	tr := newTestTransport(t, newFakeRunner())

	//nolint:staticcheck // 验证 nil context 保护
	_, err := tr.Open(nil, "a:1")
	assert.ErrorIs(t, err, ErrNilContext)
	_, err = tr.Open(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyAddress)

	tr.Close()
	tr.Close()
	_, err = tr.Open(context.Background(), "a:1")
	assert.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// conn
// =============================================================================

func TestConn_Send(t *testing.T) {
	runner := newFakeRunner()
	runner.replies["ping"] = mustRaw(t, bson.D{{Key: "ok", Value: 1.0}})
	tr := newTestTransport(t, runner)
	c, err := tr.Open(context.Background(), "a:1")
	require.NoError(t, err)

	reply, err := c.Send(context.Background(), xconnpool.Command{Database: "admin", Body: bson.D{{Key: "ping", Value: 1}}})
	require.NoError(t, err)
	var out struct {
		OK float64 `bson:"ok"`
	}
	require.NoError(t, reply.Decode(&out))
	assert.InDelta(t, 1.0, out.OK, 0)
	assert.Equal(t, []string{"admin.ping"}, runner.Calls())
}

func TestConn_SlowCommand(t *testing.T) {
	runner := newFakeRunner()
	runner.delay = 5 * time.Millisecond
	var mu sync.Mutex
	var seen []CommandInfo
	async := make(chan CommandInfo, 1)
	tr := newTestTransport(t, runner,
		WithSlowCommandThreshold(time.Millisecond),
		WithSlowCommandHook(func(_ context.Context, info CommandInfo) {
			mu.Lock()
			seen = append(seen, info)
			mu.Unlock()
		}),
		WithAsyncSlowCommandHook(func(info CommandInfo) { async <- info }),
	)
	c, err := tr.Open(context.Background(), "a:1")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), xconnpool.Command{Database: "app", Body: bson.D{{Key: "find", Value: "users"}}})
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, seen, 1)
	assert.Equal(t, "find", seen[0].Command)
	assert.Equal(t, "app", seen[0].Database)
	assert.Equal(t, "a:1", seen[0].Address)
	assert.GreaterOrEqual(t, seen[0].Duration, 5*time.Millisecond)
	mu.Unlock()

	select {
	case info := <-async:
		assert.Equal(t, "find", info.Command)
	case <-time.After(2 * time.Second):
		t.Fatal("async hook not called")
	}
	assert.EqualValues(t, 1, tr.SlowCommands())
}

func TestConn_NetworkErrorInvalidates(t *testing.T) {
	runner := newFakeRunner()
	runner.errs["find"] = networkErr
	runner.errs["count"] = mongo.CommandError{Code: 13, Message: "unauthorized"}
	tr := newTestTransport(t, runner)
	c, err := tr.Open(context.Background(), "a:1")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), xconnpool.Command{Database: "app", Body: bson.D{{Key: "count", Value: "users"}}})
	var ce mongo.CommandError
	require.ErrorAs(t, err, &ce)
	assert.True(t, c.IsOpen())

	_, err = c.Send(context.Background(), xconnpool.Command{Database: "app", Body: bson.D{{Key: "find", Value: "users"}}})
	require.Error(t, err)
	assert.True(t, mongo.IsNetworkError(err))
	assert.False(t, c.IsOpen())

	_, err = c.Send(context.Background(), xconnpool.Command{Database: "app", Body: bson.D{{Key: "find", Value: "users"}}})
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_KillCursors(t *testing.T) {
	runner := newFakeRunner()
	tr := newTestTransport(t, runner)
	c, err := tr.Open(context.Background(), "a:1")
	require.NoError(t, err)
	killer, ok := c.(xconnpool.CursorKiller)
	require.True(t, ok)

	require.NoError(t, killer.KillCursors(context.Background(), "app.users.archive", []int64{42}))
	assert.Equal(t, []string{"app.killCursors"}, runner.Calls())

	for _, ns := range []string{"", "app", ".users", "app."} {
		assert.ErrorIs(t, killer.KillCursors(context.Background(), ns, []int64{1}), ErrInvalidNamespace, ns)
	}
}

func TestReply_Decode(t *testing.T) {
	var v bson.M
	assert.ErrorIs(t, Reply{}.Decode(&v), ErrEmptyReply)
	assert.Error(t, Reply{Raw: bson.Raw{0x01}}.Decode(&v))
}

func TestCommandName(t *testing.T) {
	tests := []struct {
		name string
		body any
		want string
	}{
		{"bson.D", bson.D{{Key: "listDatabases", Value: 1}, {Key: "nameOnly", Value: true}}, "listDatabases"},
		{"empty bson.D", bson.D{}, "unknown"},
		{"single key bson.M", bson.M{"ping": 1}, "ping"},
		{"multi key bson.M", bson.M{"a": 1, "b": 2}, "unknown"},
		{"other", "ping", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandName(tt.body))
		})
	}

	raw := mustRaw(t, bson.D{{Key: "killCursors", Value: "c"}})
	assert.Equal(t, "killCursors", commandName(raw))
}
