package xreplset

import (
	"fmt"
	"io"
	"time"

	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
	"github.com/omeyang/xreplset/pkg/config/xconf"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/storage/xmongo"
)

// Config 客户端配置。URI 与显式字段同时给出时显式字段优先。
//
//	uri: mongodb://db1:27017,db2:27017/?replicaSet=rs0
//	connect_timeout: 5s
//	cache_lifetime: 15s
//	refresh_interval: 10s
//	read_preference:
//	  mode: secondaryPreferred
//	  tag_sets: [{dc: east}, {}]
//	  acceptable_latency: 20ms
//	log:
//	  level: info
//	  format: json
type Config struct {
	URI             string             `koanf:"uri"`
	Seeds           []string           `koanf:"seeds"`
	ReplicaSet      string             `koanf:"replica_set"`
	ConnectTimeout  time.Duration      `koanf:"connect_timeout"`
	CacheLifetime   time.Duration      `koanf:"cache_lifetime"`
	RefreshInterval time.Duration      `koanf:"refresh_interval"`
	FailureBackoff  time.Duration      `koanf:"failure_backoff"`
	ReadPreference  xreadpref.ReadPref `koanf:"read_preference"`
	Log             LogConfig          `koanf:"log"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 非空时按大小轮转写入文件。
	File string `koanf:"file"`
}

// NewLogger 按配置构建日志器，File 为空时写入 w。
func (l LogConfig) NewLogger(w io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().SetOutput(w)
	if l.Level != "" {
		b = b.SetLevelString(l.Level)
	}
	if l.Format != "" {
		b = b.SetFormat(l.Format)
	}
	if l.File != "" {
		b = b.SetRotation(l.File)
	}
	return b.Build()
}

// LoadConfig 从 YAML/JSON 文件加载配置。
func LoadConfig(path string) (Config, error) {
	c, err := xconf.Load(path)
	if err != nil {
		return Config{}, err
	}
	return DecodeConfig(c)
}

// DecodeConfig 从已加载的 xconf.Config 解码，供热更新回调使用。
func DecodeConfig(c *xconf.Config) (Config, error) {
	var cfg Config
	if err := c.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.ReadPreference.Validate(); err != nil {
		return Config{}, fmt.Errorf("xreplset: read_preference: %w", err)
	}
	return cfg, nil
}

// resolved 合并 URI 后的有效配置。
type resolved struct {
	seeds      []string
	replicaSet string
	readPref   xreadpref.ReadPref
	transport  []xmongo.Option
}

func (cfg Config) resolve() (resolved, error) {
	r := resolved{
		seeds:      cfg.Seeds,
		replicaSet: cfg.ReplicaSet,
		readPref:   cfg.ReadPreference,
	}
	if cfg.URI != "" {
		info, err := xmongo.ParseURI(cfg.URI)
		if err != nil {
			return resolved{}, err
		}
		if len(r.seeds) == 0 {
			r.seeds = info.Seeds
		}
		if r.replicaSet == "" {
			r.replicaSet = info.ReplicaSet
		}
		if r.readPref.Equal(xreadpref.ReadPref{}) {
			r.readPref = info.ReadPref
		}
		r.transport = info.TransportOptions()
	}
	rp, err := xreadpref.New(r.readPref.Mode,
		xreadpref.WithTagSets(r.readPref.TagSets...),
		xreadpref.WithAcceptableLatency(r.readPref.AcceptableLatency))
	if err != nil {
		return resolved{}, err
	}
	r.readPref = rp
	return r, nil
}
