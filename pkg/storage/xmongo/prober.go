package xmongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/xreplset/internal/storageopt"
	"github.com/omeyang/xreplset/pkg/cluster/xconnpool"
	"github.com/omeyang/xreplset/pkg/cluster/xtopo"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// Acquirer 按地址提供连接，*xconnpool.Pool 满足该接口。
type Acquirer interface {
	Acquire(ctx context.Context, address string) (xconnpool.Conn, error)
}

// Prober 实现 xtopo.Prober：发送 replSetGetStatus，再用 replSetGetConfig 补充成员标签。
type Prober struct {
	acquirer Acquirer
	logger   xlog.Logger
	observer xmetrics.Observer
	counter  storageopt.ProbeCounter
}

var _ xtopo.Prober = (*Prober)(nil)

// NewProber 创建 Prober。
func NewProber(acquirer Acquirer, opts ...Option) (*Prober, error) {
	if acquirer == nil {
		return nil, ErrNilAcquirer
	}
	o := applyOptions(opts)
	return &Prober{
		acquirer: acquirer,
		logger:   o.Logger.With(xlog.Component(componentName)),
		observer: o.Observer,
	}, nil
}

type replSetStatus struct {
	Set     string         `bson:"set"`
	Members []memberStatus `bson:"members"`
}

type memberStatus struct {
	Name          string    `bson:"name"`
	Health        float64   `bson:"health"`
	State         int       `bson:"state"`
	StateStr      string    `bson:"stateStr"`
	PingMs        int64     `bson:"pingMs"`
	LastHeartbeat time.Time `bson:"lastHeartbeat"`
	Self          bool      `bson:"self"`
}

type replSetConfig struct {
	Config struct {
		Members []struct {
			Host string            `bson:"host"`
			Tags map[string]string `bson:"tags"`
		} `bson:"members"`
	} `bson:"config"`
}

// Probe 实现 xtopo.Prober。
func (p *Prober) Probe(ctx context.Context, address string) (_ *xtopo.StatusReply, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	p.counter.Inc()
	ctx, span := xmetrics.Start(ctx, p.observer, xmetrics.SpanOptions{
		Component: componentName,
		Operation: "probe",
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{xmetrics.String("address", address)},
	})
	defer func() {
		if err != nil {
			p.counter.IncError()
		}
		span.End(xmetrics.Result{Err: err})
	}()

	conn, err := p.acquirer.Acquire(ctx, address)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := conn.Send(ctx, xconnpool.Command{
		Database: "admin",
		Body:     bson.D{{Key: "replSetGetStatus", Value: 1}},
	})
	rtt := time.Since(start)
	if err != nil {
		if isNotReplicaSet(err) {
			return &xtopo.StatusReply{Standalone: true, RTT: rtt}, nil
		}
		return nil, err
	}

	var st replSetStatus
	if err := reply.Decode(&st); err != nil {
		return nil, err
	}

	out := &xtopo.StatusReply{SetName: st.Set, RTT: rtt, Members: make([]xtopo.MemberStatus, 0, len(st.Members))}
	tags := p.memberTags(ctx, conn)
	for _, m := range st.Members {
		out.Members = append(out.Members, xtopo.MemberStatus{
			Address:       m.Name,
			State:         m.State,
			StateStr:      m.StateStr,
			Healthy:       m.Health == 1,
			PingMillis:    m.PingMs,
			LastHeartbeat: m.LastHeartbeat,
			Self:          m.Self,
			Tags:          tags[m.Name],
		})
	}
	return out, nil
}

// memberTags 读取副本集配置中的成员标签。失败只记日志，标签为空。
func (p *Prober) memberTags(ctx context.Context, conn xconnpool.Conn) map[string]map[string]string {
	reply, err := conn.Send(ctx, xconnpool.Command{
		Database: "admin",
		Body:     bson.D{{Key: "replSetGetConfig", Value: 1}},
	})
	var cfg replSetConfig
	if err == nil {
		err = reply.Decode(&cfg)
	}
	if err != nil {
		p.logger.Warn(ctx, "read member tags failed", xlog.Address(conn.Address()), xlog.Err(err))
		return nil
	}
	tags := make(map[string]map[string]string, len(cfg.Config.Members))
	for _, m := range cfg.Config.Members {
		if len(m.Tags) > 0 {
			tags[m.Host] = m.Tags
		}
	}
	return tags
}

// ProbeStats 探测统计。
type ProbeStats struct {
	Probes int64
	Errors int64
}

// Stats 返回探测统计。
func (p *Prober) Stats() ProbeStats {
	return ProbeStats{Probes: p.counter.Probes(), Errors: p.counter.Errors()}
}

func isNotReplicaSet(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorCode(codeNoReplicationEnabled) {
		return true
	}
	return strings.Contains(err.Error(), "not running with --replSet")
}

// String 便于日志输出。
func (s ProbeStats) String() string {
	return fmt.Sprintf("probes=%d errors=%d", s.Probes, s.Errors)
}
