package xpool

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/omeyang/xreplset/pkg/observability/xlog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_Validation(t *testing.T) {
	_, err := New[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
	_, err = New(0, 1, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidWorkers)
	_, err = New(1, 0, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}

func TestPool_ProcessesAllBeforeClose(t *testing.T) {
	var sum atomic.Int64
	p, err := New(4, 64, func(n int) { sum.Add(int64(n)) })
	require.NoError(t, err)

	for i := 1; i <= 50; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Close())
	assert.EqualValues(t, 1275, sum.Load())
	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
	require.NoError(t, p.Close())
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	p, err := New(1, 1, func(int) {
		once.Do(func() { close(started) })
		<-release
	})
	require.NoError(t, err)

	require.NoError(t, p.Submit(1))
	<-started
	require.NoError(t, p.Submit(2))
	assert.ErrorIs(t, p.Submit(3), ErrQueueFull)

	close(release)
	require.NoError(t, p.Close())
}

func TestPool_PanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)

	var handled atomic.Int32
	p, err := New(1, 4, func(n int) {
		if n == 1 {
			panic("hook exploded")
		}
		handled.Add(1)
	}, WithLogger(logger), WithName("topology-hooks"))
	require.NoError(t, err)

	require.NoError(t, p.Submit(1))
	require.NoError(t, p.Submit(2))
	require.NoError(t, p.Close())

	assert.EqualValues(t, 1, handled.Load())
	assert.Contains(t, buf.String(), "hook exploded")
	assert.Contains(t, buf.String(), "pool=topology-hooks")
}

func TestPool_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	p, err := New(1, 1, func(int) { <-release })
	require.NoError(t, err)
	require.NoError(t, p.Submit(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	<-p.Done()
	//nolint:staticcheck // nil ctx 需要被拒绝
	assert.ErrorIs(t, p.Shutdown(nil), ErrNilContext)
}
