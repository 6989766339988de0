// xreplctl 是 MongoDB 副本集拓扑与读偏好的命令行工具。
//
// 用法:
//
//	xreplctl [全局选项] <命令>
//
// 全局选项:
//
//	-u, --uri      连接串，如 mongodb://db1:27017,db2:27017/?replicaSet=rs0
//	-c, --config   YAML/JSON 配置文件，与 --uri 同时给出时 --uri 优先
//	-t, --timeout  单次命令超时时间 (默认: 10s)
//	-m, --mode     读偏好模式 (primary/primaryPreferred/secondary/secondaryPreferred/nearest)
//	    --tags     标签集，集合之间用 ";" 分隔，键值之间用 "," 分隔，"{}" 表示空集合
//	    --metrics  命令结束后向 stderr 输出各操作的计数
//
// 命令:
//
//	hosts          列出节点状态
//	resolve        输出读偏好选中的节点
//	topology       以 JSON 输出拓扑快照
//	watch          监视配置文件，变更后重新输出选中的节点
//
// 退出码:
//
//	0: 成功
//	1: 运行失败（连接失败、无可用节点等）
//	2: 参数错误
//
// 示例:
//
//	xreplctl -u "mongodb://db1:27017,db2:27017/?replicaSet=rs0" hosts
//	xreplctl -u mongodb://db1:27017 -m secondaryPreferred --tags "dc=east;{}" resolve
//	xreplctl -c client.yaml watch
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// defaultTimeout 默认超时时间。
const defaultTimeout = 10 * time.Second

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xreplctl",
		Usage:     "MongoDB 副本集拓扑与读偏好工具",
		Version:   fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "uri",
				Aliases: []string{"u"},
				Usage:   "MongoDB 连接串",
				Sources: cli.EnvVars("XREPLCTL_URI"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (.yaml/.yml/.json)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "单次命令超时时间",
				Value:   defaultTimeout,
			},
			&cli.StringFlag{
				Name:    "mode",
				Aliases: []string{"m"},
				Usage:   "读偏好模式",
			},
			&cli.StringFlag{
				Name:  "tags",
				Usage: `标签集，如 "dc=east,rack=1;{}"`,
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "命令结束后向 stderr 输出操作计数",
			},
		},
		Commands: createCommands(),
		// 参数错误统一转为 usageError，由 run 映射为退出码 2。
		OnUsageError: func(_ context.Context, _ *cli.Command, err error, _ bool) error {
			return &usageError{msg: err.Error()}
		},
		// 禁止 urfave/cli 直接调用 os.Exit，退出码由 run 统一映射。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)
	err := app.Run(ctx, args)
	if err == nil {
		return 0
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}
