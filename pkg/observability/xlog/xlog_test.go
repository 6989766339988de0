package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestBuilder_Defaults(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	assert.Equal(t, LevelInfo, logger.GetLevel())

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "visible", Address("db1:27017"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "address=db1:27017")
}

func TestBuilder_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New().
		SetOutput(&buf).
		SetFormat("JSON").
		SetAttrs(Component("xtopo")).
		Build()
	require.NoError(t, err)

	logger.Warn(context.Background(), "primary changed",
		Role(stringer("PRIMARY")),
		ReplicaSet("rs0"),
		Mode(stringer("nearest")),
		Count(3),
	)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "xtopo", rec[KeyComponent])
	assert.Equal(t, "PRIMARY", rec[KeyRole])
	assert.Equal(t, "rs0", rec[KeyReplicaSet])
	assert.Equal(t, "nearest", rec[KeyMode])
	assert.EqualValues(t, 3, rec[KeyCount])
}

func TestBuilder_FirstErrorWins(t *testing.T) {
	t.Run("bad format", func(t *testing.T) {
		_, _, err := New().SetFormat("xml").SetLevel(LevelDebug).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})

	t.Run("bad level", func(t *testing.T) {
		_, _, err := New().SetLevelString("verbose").SetFormat("xml").Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown level")
	})

	t.Run("empty rotation file", func(t *testing.T) {
		_, _, err := New().SetRotation("  ").Build()
		require.Error(t, err)
	})
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	logger, cleanup, err := New().
		SetRotation(path, RotationOptions{MaxSizeMB: 1, MaxBackups: 2}).
		Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "rotated", Duration(15*time.Millisecond))
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated")
	assert.Contains(t, string(data), "duration=15ms")
}

func TestLogger_DerivedShareLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)

	child := logger.With(ClientID("c-1")).WithGroup("route")
	child.Debug(context.Background(), "before")
	logger.SetLevel(LevelDebug)
	child.Debug(context.Background(), "after", Address("db2:27017"))

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
	assert.Contains(t, out, "client_id=c-1")
	assert.Contains(t, out, "route.address=db2:27017")
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogger_OnError(t *testing.T) {
	var got []error
	logger, _, err := New().
		SetOutput(failingWriter{}).
		SetOnError(func(e error) {
			got = append(got, e)
			panic("callback must not escape")
		}).
		Build()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		logger.Error(context.Background(), "boom")
	})
	require.Len(t, got, 1)
	assert.EqualValues(t, 1, logger.(*xlogger).ErrorCount())
}

func TestLogger_NilContext(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)

	//nolint:staticcheck // nil ctx 需要被容忍
	logger.Info(nil, "no ctx")
	assert.Contains(t, buf.String(), "no ctx")
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.NotPanics(t, func() {
		l.Error(context.Background(), "dropped", Err(errors.New("x")))
	})
	assert.Same(t, l, OrDiscard(l))
	assert.NotNil(t, OrDiscard(nil))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"Error", LevelError, false},
		{"trace", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_TextRoundTrip(t *testing.T) {
	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, LevelWarn, l)
	b, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "WARN", string(b))
	assert.Error(t, l.UnmarshalText([]byte("loud")))
	assert.True(t, strings.HasPrefix(Level(slog.LevelInfo+2).String(), "INFO"))
}

func TestAttrs_Empty(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Err(nil))
	assert.Equal(t, slog.Attr{}, ReplicaSet(""))
	assert.Equal(t, "op", Operation("op").Value.String())
}

func TestGlobalDefault(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	d1 := Default()
	d2 := Default()
	assert.Same(t, d1, d2)

	var buf bytes.Buffer
	custom, _, err := New().SetOutput(&buf).Build()
	require.NoError(t, err)
	SetDefault(custom)
	SetDefault(nil)

	Info(context.Background(), "global info")
	Warn(context.Background(), "global warn")
	Error(context.Background(), "global error")
	out := buf.String()
	assert.Contains(t, out, "global info")
	assert.Contains(t, out, "global warn")
	assert.Contains(t, out, "global error")
}
