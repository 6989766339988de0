package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xreplset/pkg/cluster/xreadpref"
	"github.com/omeyang/xreplset/pkg/cluster/xreplset"
	"github.com/omeyang/xreplset/pkg/cluster/xtopo"
	"github.com/omeyang/xreplset/pkg/config/xconf"
	"github.com/omeyang/xreplset/pkg/observability/xlog"
	"github.com/omeyang/xreplset/pkg/observability/xmetrics"
)

// usageError 参数错误，映射为退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// isCLIUsageError 识别 urfave/cli 自身产生、未经 OnUsageError 的参数错误（如未知命令）。
func isCLIUsageError(err error) bool {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"flag provided but not defined", "No help topic for", "Required flag"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// replClient 命令依赖的客户端能力。
type replClient interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	Hosts(ctx context.Context) ([]xreplset.HostStatus, error)
	CurrentTopology(ctx context.Context) (*xtopo.Snapshot, error)
	ResolveServerFor(ctx context.Context, rp xreadpref.ReadPref) (string, error)
	ReadPreference() xreadpref.ReadPref
	ApplyConfig(cfg xreplset.Config) error
}

// newClient 构建客户端，测试中可替换。
var newClient = func(cfg xreplset.Config, logger xlog.Logger, obs xmetrics.Observer) (replClient, error) {
	return xreplset.New(cfg, xreplset.WithLogger(logger), xreplset.WithObserver(obs))
}

// createCommands 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "hosts",
			Usage: "列出节点状态",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "json", Usage: "以 JSON 输出"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withClient(ctx, cmd, func(ctx context.Context, c replClient) error {
					return cmdHosts(ctx, c, cmd.Root().Writer, cmd.Bool("json"))
				})
			},
		},
		{
			Name:  "resolve",
			Usage: "输出读偏好选中的节点",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withClient(ctx, cmd, func(ctx context.Context, c replClient) error {
					return cmdResolve(ctx, c, cmd.Root().Writer)
				})
			},
		},
		{
			Name:  "topology",
			Usage: "以 JSON 输出拓扑快照",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return withClient(ctx, cmd, func(ctx context.Context, c replClient) error {
					return cmdTopology(ctx, c, cmd.Root().Writer)
				})
			},
		},
		{
			Name:  "watch",
			Usage: "监视配置文件，变更后重新输出选中的节点",
			Flags: []cli.Flag{
				&cli.DurationFlag{Name: "debounce", Usage: "变更防抖间隔", Value: 200 * time.Millisecond},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return cmdWatch(ctx, cmd)
			},
		},
	}
}

// globals 全局参数。
type globals struct {
	uri     string
	config  string
	timeout time.Duration
	mode    string
	tags    string
	metrics bool
}

func globalsOf(cmd *cli.Command) globals {
	return globals{
		uri:     cmd.String("uri"),
		config:  cmd.String("config"),
		timeout: cmd.Duration("timeout"),
		mode:    cmd.String("mode"),
		tags:    cmd.String("tags"),
		metrics: cmd.Bool("metrics"),
	}
}

// buildConfig 合并配置文件与命令行参数，命令行优先。
func buildConfig(g globals) (xreplset.Config, error) {
	var cfg xreplset.Config
	if g.config != "" {
		loaded, err := xreplset.LoadConfig(g.config)
		if err != nil {
			if errors.Is(err, xconf.ErrUnsupportedFormat) || errors.Is(err, xconf.ErrEmptyPath) {
				return cfg, &usageError{msg: err.Error()}
			}
			return cfg, err
		}
		cfg = loaded
	}
	if err := g.override(&cfg); err != nil {
		return cfg, err
	}
	if cfg.URI == "" && len(cfg.Seeds) == 0 {
		return cfg, usagef("需要 --uri 或在配置文件中给出 uri/seeds")
	}
	if g.timeout <= 0 {
		return cfg, usagef("--timeout 必须为正数")
	}
	return cfg, nil
}

// override 把 --uri、--mode、--tags 写入 cfg。
func (g globals) override(cfg *xreplset.Config) error {
	if g.uri != "" {
		cfg.URI = g.uri
		cfg.Seeds = nil
	}
	if g.mode != "" {
		m, err := xreadpref.ParseMode(g.mode)
		if err != nil {
			return usagef("--mode: %v", err)
		}
		cfg.ReadPreference.Mode = m
	}
	if g.tags != "" {
		sets, err := parseTagSets(g.tags)
		if err != nil {
			return err
		}
		cfg.ReadPreference.TagSets = sets
	}
	if err := cfg.ReadPreference.Validate(); err != nil {
		return usagef("读偏好: %v", err)
	}
	return nil
}

// parseTagSets 解析 "dc=east,rack=1;{}" 形式的标签集列表。
func parseTagSets(s string) ([]xreadpref.TagSet, error) {
	var sets []xreadpref.TagSet
	for raw := range strings.SplitSeq(s, ";") {
		raw = strings.TrimSpace(raw)
		set := xreadpref.TagSet{}
		if raw == "" || raw == "{}" {
			sets = append(sets, set)
			continue
		}
		for pair := range strings.SplitSeq(raw, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || k == "" {
				return nil, usagef("--tags: 无效的键值 %q", pair)
			}
			set[k] = v
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// clientLogger 命令行默认只输出警告以上的日志。
func clientLogger(cfg xreplset.Config, w io.Writer) (xlog.Logger, func() error, error) {
	lc := cfg.Log
	if lc.Level == "" {
		lc.Level = "warn"
	}
	return lc.NewLogger(w)
}

// withClient 构建并连接客户端，在超时内执行 fn。
func withClient(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, c replClient) error) (err error) {
	g := globalsOf(cmd)
	cfg, err := buildConfig(g)
	if err != nil {
		return err
	}
	c, cleanup, err := openClient(ctx, cfg, cmd.Root().ErrWriter, g)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, cleanup()) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return fn(ctx, c)
}

// openClient 构建并连接客户端。--metrics 时关闭客户端后把操作计数写到 errw。
func openClient(ctx context.Context, cfg xreplset.Config, errw io.Writer, g globals) (replClient, func() error, error) {
	logger, closeLog, err := clientLogger(cfg, errw)
	if err != nil {
		return nil, nil, usagef("log: %v", err)
	}
	var rec *metricsRecorder
	if g.metrics {
		if rec, err = newMetricsRecorder(); err != nil {
			return nil, nil, errors.Join(err, closeLog())
		}
	}
	c, err := newClient(cfg, logger, rec.Observer())
	if err != nil {
		return nil, nil, errors.Join(err, rec.Report(context.WithoutCancel(ctx), io.Discard), closeLog())
	}
	connectCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := c.Connect(connectCtx); err != nil {
		return nil, nil, errors.Join(err, c.Close(context.WithoutCancel(ctx)), rec.Report(context.WithoutCancel(ctx), errw), closeLog())
	}
	cleanup := func() error {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		err := c.Close(closeCtx)
		return errors.Join(err, rec.Report(closeCtx, errw), closeLog())
	}
	return c, cleanup, nil
}

func cmdHosts(ctx context.Context, c replClient, w io.Writer, asJSON bool) error {
	hosts, err := c.Hosts(ctx)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hosts)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tPORT\tROLE\tHEALTH\tPING(ms)\tLAST PING")
	for _, h := range hosts {
		last := "-"
		if !h.LastPing.IsZero() {
			last = h.LastPing.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%d\t%s\n", h.Host, h.Port, h.Role, h.Health, h.Ping, last)
	}
	return tw.Flush()
}

func cmdResolve(ctx context.Context, c replClient, w io.Writer) error {
	addr, err := c.ResolveServerFor(ctx, c.ReadPreference())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, addr)
	return err
}

func cmdTopology(ctx context.Context, c replClient, w io.Writer) error {
	snap, err := c.CurrentTopology(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// cmdWatch 监视 --config 指向的文件。每次变更后应用新读偏好并输出选中的节点，
// 直到 ctx 被取消。解析失败的变更只报告错误，客户端保持原读偏好。
func cmdWatch(ctx context.Context, cmd *cli.Command) (err error) {
	g := globalsOf(cmd)
	if g.config == "" {
		return usagef("watch 需要 --config")
	}
	cfg, err := buildConfig(g)
	if err != nil {
		return err
	}
	xc, err := xconf.Load(g.config)
	if err != nil {
		return err
	}
	c, cleanup, err := openClient(ctx, cfg, cmd.Root().ErrWriter, g)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, cleanup()) }()

	out := &lockedWriter{w: cmd.Root().Writer}
	errw := &lockedWriter{w: cmd.Root().ErrWriter}
	report := func() {
		rctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		rp := c.ReadPreference()
		addr, err := c.ResolveServerFor(rctx, rp)
		if err != nil {
			fmt.Fprintf(errw, "%s %s: %v\n", time.Now().Format(time.RFC3339), rp, err)
			return
		}
		fmt.Fprintf(out, "%s %s -> %s\n", time.Now().Format(time.RFC3339), rp, addr)
	}
	report()

	stop, err := xc.Watch(ctx, func(xc *xconf.Config, werr error) {
		if werr != nil {
			fmt.Fprintf(errw, "reload: %v\n", werr)
			return
		}
		next, err := xreplset.DecodeConfig(xc)
		if err == nil {
			err = g.override(&next)
		}
		if err == nil {
			err = c.ApplyConfig(next)
		}
		if err != nil {
			fmt.Fprintf(errw, "apply: %v\n", err)
			return
		}
		report()
	}, xconf.WithDebounce(cmd.Duration("debounce")))
	if err != nil {
		return err
	}
	<-ctx.Done()
	return stop()
}

// lockedWriter 串行化监视回调与主流程的输出。
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// setupSignalHandler 第一次信号取消 ctx，第二次信号强制退出（130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
