package xconf

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clientConf struct {
	Seeds          []string      `koanf:"seeds"`
	ReplicaSet     string        `koanf:"replica_set"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	ReadPreference struct {
		Mode string `koanf:"mode"`
	} `koanf:"read_preference"`
}

const yamlConf = `
seeds: [db1:27017, db2:27017]
replica_set: rs0
connect_timeout: 5s
read_preference:
  mode: nearest
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	writeFile(t, path, yamlConf)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, cfg.Format())
	assert.Equal(t, path, cfg.Path())

	var c clientConf
	require.NoError(t, cfg.Unmarshal("", &c))
	assert.Equal(t, []string{"db1:27017", "db2:27017"}, c.Seeds)
	assert.Equal(t, "rs0", c.ReplicaSet)
	assert.Equal(t, 5*time.Second, c.ConnectTimeout)
	assert.Equal(t, "nearest", c.ReadPreference.Mode)
	assert.Equal(t, "rs0", cfg.Koanf().String("replica_set"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Load("/etc/client.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	bad := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, bad, "{not json")
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`{"replica_set":"rs1","seeds":["a:1"]}`), FormatJSON)
	require.NoError(t, err)
	var c clientConf
	require.NoError(t, cfg.Unmarshal("", &c))
	assert.Equal(t, "rs1", c.ReplicaSet)
	assert.ErrorIs(t, cfg.Reload(), ErrNotReloadable)

	empty, err := Parse(nil, FormatYAML)
	require.NoError(t, err)
	require.NoError(t, empty.Unmarshal("", &c))

	_, err = Parse([]byte("x"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, stopErr := cfg.Watch(context.Background(), nil)
	assert.ErrorIs(t, stopErr, ErrNotReloadable)
}

func TestParse_UnmarshalFailed(t *testing.T) {
	cfg, err := Parse([]byte(`connect_timeout: soon`), FormatYAML)
	require.NoError(t, err)
	var c clientConf
	assert.ErrorIs(t, cfg.Unmarshal("", &c), ErrUnmarshalFailed)
}

func TestReload_KeepsOldOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	writeFile(t, path, yamlConf)
	cfg, err := Load(path)
	require.NoError(t, err)

	writeFile(t, path, "seeds: [unclosed")
	assert.ErrorIs(t, cfg.Reload(), ErrParseFailed)
	assert.Equal(t, "rs0", cfg.Koanf().String("replica_set"))
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	writeFile(t, path, yamlConf)
	cfg, err := Load(path)
	require.NoError(t, err)

	var mu sync.Mutex
	var reloads int
	stop, err := cfg.Watch(context.Background(), func(c *Config, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			reloads++
		}
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)

	writeFile(t, path, "replica_set: rs9\n")
	require.Eventually(t, func() bool {
		return cfg.Koanf().String("replica_set") == "rs9"
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, stop())
	require.NoError(t, stop())
	mu.Lock()
	assert.GreaterOrEqual(t, reloads, 1)
	mu.Unlock()
}

func TestWatch_ContextCancelStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.json")
	writeFile(t, path, `{"replica_set":"rs0"}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stop, err := cfg.Watch(ctx, nil)
	require.NoError(t, err)
	cancel()
	require.NoError(t, stop())
}
