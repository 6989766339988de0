package xmongo

import (
	"crypto/tls"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
)

// URIInfo 连接串中与副本集管理相关的部分。
type URIInfo struct {
	Seeds          []string
	ReplicaSet     string
	Database       string
	AppName        string
	ConnectTimeout time.Duration
	Credential     *options.Credential
	TLS            bool
	ReadPref       xreadpref.ReadPref
}

// ParseURI 解析 mongodb:// 连接串。未指定读偏好时为 primary。
func ParseURI(uri string) (*URIInfo, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if len(cs.Hosts) == 0 {
		return nil, fmt.Errorf("%w: no hosts", ErrInvalidURI)
	}

	info := &URIInfo{
		Seeds:      append([]string(nil), cs.Hosts...),
		ReplicaSet: cs.ReplicaSet,
		Database:   cs.Database,
		AppName:    cs.AppName,
		TLS:        cs.SSLSet && cs.SSL,
	}
	if cs.ConnectTimeoutSet {
		info.ConnectTimeout = cs.ConnectTimeout
	}
	if cs.UsernameSet || cs.Username != "" || cs.AuthMechanism != "" {
		info.Credential = &options.Credential{
			AuthMechanism: cs.AuthMechanism,
			AuthSource:    cs.AuthSource,
			Username:      cs.Username,
			Password:      cs.Password,
			PasswordSet:   cs.PasswordSet,
		}
	}

	rp, err := readPrefFromConnString(cs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	info.ReadPref = rp
	return info, nil
}

func readPrefFromConnString(cs *connstring.ConnString) (xreadpref.ReadPref, error) {
	mode := xreadpref.Primary
	if cs.ReadPreference != "" {
		m, err := xreadpref.ParseMode(cs.ReadPreference)
		if err != nil {
			return xreadpref.ReadPref{}, err
		}
		mode = m
	}
	var opts []xreadpref.Option
	if len(cs.ReadPreferenceTagSets) > 0 {
		sets := make([]xreadpref.TagSet, 0, len(cs.ReadPreferenceTagSets))
		for _, ts := range cs.ReadPreferenceTagSets {
			sets = append(sets, xreadpref.TagSet(ts))
		}
		opts = append(opts, xreadpref.WithTagSets(sets...))
	}
	if cs.LocalThresholdSet {
		opts = append(opts, xreadpref.WithAcceptableLatency(cs.LocalThreshold))
	}
	return xreadpref.New(mode, opts...)
}

// TransportOptions 把连接串中的连接参数转换为 Transport 选项。
func (u *URIInfo) TransportOptions() []Option {
	var opts []Option
	if u.ConnectTimeout > 0 {
		opts = append(opts, WithConnectTimeout(u.ConnectTimeout))
	}
	if u.Credential != nil {
		opts = append(opts, WithCredential(*u.Credential))
	}
	if u.AppName != "" {
		opts = append(opts, WithAppName(u.AppName))
	}
	if u.TLS {
		opts = append(opts, WithTLS(&tls.Config{MinVersion: tls.VersionTLS12}))
	}
	return opts
}
