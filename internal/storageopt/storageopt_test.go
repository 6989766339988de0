package storageopt

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestProbeContext(t *testing.T) {
	ctx, cancel := ProbeContext(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx2, cancel2 := ProbeContext(context.Background(), time.Second)
	defer cancel2()
	dl, ok := ctx2.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), dl, 100*time.Millisecond)
}

func TestProbeCounter(t *testing.T) {
	var c ProbeCounter
	c.Inc()
	c.Inc()
	c.IncError()
	assert.EqualValues(t, 2, c.Probes())
	assert.EqualValues(t, 1, c.Errors())
}

func TestSlowCommandDetector(t *testing.T) {
	var syncCalls atomic.Int32
	var asyncCalls atomic.Int32
	d, err := NewSlowCommandDetector(SlowCommandOptions[string]{
		Threshold: 10 * time.Millisecond,
		SyncHook:  func(context.Context, string) { syncCalls.Add(1) },
		AsyncHook: func(string) { asyncCalls.Add(1) },
	})
	require.NoError(t, err)

	assert.False(t, d.Observe(context.Background(), "ping", time.Millisecond))
	assert.True(t, d.Observe(context.Background(), "replSetGetStatus", 10*time.Millisecond))
	assert.True(t, d.Observe(context.Background(), "listDatabases", time.Second))

	d.Close()
	d.Close()
	assert.EqualValues(t, 2, asyncCalls.Load())

	// 关闭后只停止异步派发
	assert.True(t, d.Observe(context.Background(), "late", time.Second))
	assert.EqualValues(t, 3, syncCalls.Load())
	assert.EqualValues(t, 2, asyncCalls.Load())
	assert.EqualValues(t, 3, d.Count())
}

func TestSlowCommandDetector_Disabled(t *testing.T) {
	d, err := NewSlowCommandDetector(SlowCommandOptions[string]{})
	require.NoError(t, err)
	defer d.Close()
	assert.False(t, d.Observe(context.Background(), "ping", time.Hour))

	var nilD *SlowCommandDetector[string]
	assert.False(t, nilD.Observe(context.Background(), "ping", time.Hour))
	assert.Zero(t, nilD.Count())
	nilD.Close()
}
