package xreplset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
	"github.com/omeyang/xreplset/pkg/config/xconf"
	"github.com/omeyang/xreplset/pkg/storage/xmongo"
)

const clientYAML = `
seeds: [db1:27017, db2:27017]
replica_set: rs0
connect_timeout: 5s
cache_lifetime: 30s
refresh_interval: 10s
failure_backoff: 2s
read_preference:
  mode: secondaryPreferred
  tag_sets:
    - dc: east
    - {}
  acceptable_latency: 20ms
log:
  level: debug
  format: json
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "client.yaml", clientYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"db1:27017", "db2:27017"}, cfg.Seeds)
	assert.Equal(t, "rs0", cfg.ReplicaSet)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 30*time.Second, cfg.CacheLifetime)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 2*time.Second, cfg.FailureBackoff)
	assert.Equal(t, xreadpref.SecondaryPreferred, cfg.ReadPreference.Mode)
	require.Len(t, cfg.ReadPreference.TagSets, 2)
	assert.Equal(t, xreadpref.TagSet{"dc": "east"}, cfg.ReadPreference.TagSets[0])
	assert.Empty(t, cfg.ReadPreference.TagSets[1])
	assert.Equal(t, 20*time.Millisecond, cfg.ReadPreference.AcceptableLatency)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "client.toml", ""))
	assert.ErrorIs(t, err, xconf.ErrUnsupportedFormat)

	_, err = LoadConfig(writeConfig(t, "bad.yaml", "read_preference:\n  mode: fastest\n"))
	assert.ErrorIs(t, err, xconf.ErrUnmarshalFailed)

	_, err = LoadConfig(writeConfig(t, "tags.json", `{"read_preference":{"mode":"primary","tag_sets":[{"dc":"east"}]}}`))
	assert.ErrorIs(t, err, xreadpref.ErrInvalidReadPref)
}

func TestConfig_Resolve(t *testing.T) {
	t.Run("uri only", func(t *testing.T) {
		r, err := Config{URI: "mongodb://db1:1,db2:2/?replicaSet=rs0&readPreference=secondary&connectTimeoutMS=1500"}.resolve()
		require.NoError(t, err)
		assert.Equal(t, []string{"db1:1", "db2:2"}, r.seeds)
		assert.Equal(t, "rs0", r.replicaSet)
		assert.Equal(t, xreadpref.Secondary, r.readPref.Mode)
		assert.Len(t, r.transport, 1)
	})

	t.Run("explicit fields win", func(t *testing.T) {
		r, err := Config{
			URI:            "mongodb://db1:1/?replicaSet=rs0&readPreference=secondary",
			Seeds:          []string{"x:1"},
			ReplicaSet:     "rs9",
			ReadPreference: xreadpref.ReadPref{Mode: xreadpref.Nearest},
		}.resolve()
		require.NoError(t, err)
		assert.Equal(t, []string{"x:1"}, r.seeds)
		assert.Equal(t, "rs9", r.replicaSet)
		assert.Equal(t, xreadpref.Nearest, r.readPref.Mode)
		assert.Equal(t, xreadpref.DefaultAcceptableLatency, r.readPref.AcceptableLatency)
	})

	t.Run("invalid uri", func(t *testing.T) {
		_, err := Config{URI: "db1:27017"}.resolve()
		assert.ErrorIs(t, err, xmongo.ErrInvalidURI)
	})
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)
	defer func() { _ = cleanup() }()

	logger.Info(context.Background(), "hidden")
	logger.Warn(context.Background(), "shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	_, _, err = LogConfig{Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}

func TestApplyConfig_FromWatch(t *testing.T) {
	path := writeConfig(t, "client.yaml", "seeds: [a:1, b:1, c:1]\nread_preference:\n  mode: primary\n")
	xc, err := xconf.Load(path)
	require.NoError(t, err)
	cfg, err := DecodeConfig(xc)
	require.NoError(t, err)
	c := newTestClient(t, cfg, newFakeTransport(), &clusterProber{})

	stop, err := xc.Watch(context.Background(), func(xc *xconf.Config, err error) {
		if err != nil {
			return
		}
		if next, err := DecodeConfig(xc); err == nil {
			_ = c.ApplyConfig(next)
		}
	}, xconf.WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	defer func() { require.NoError(t, stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("seeds: [a:1, b:1, c:1]\nread_preference:\n  mode: secondaryPreferred\n"), 0o600))
	require.Eventually(t, func() bool {
		addr, err := c.ResolveServerFor(context.Background(), c.ReadPreference())
		return err == nil && addr == "b:1"
	}, 2*time.Second, 10*time.Millisecond)
}
