package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/taoyao-code/scrhat/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/scrhat/internal/config"
	"github.com/taoyao-code/scrhat/internal/logging"
)

const usage = `Usage: scrhat [--config FILE] [--dev PATH] [--baud N] <command>

Commands:
  on1          switch mode, enable channel 1
  off1         switch mode, disable channel 1
  ramp         phase-angle ramp on both channels until interrupted
  relay        toggle the relay line until interrupted
  script FILE  run a YAML step list
  baud N       switch the module to N bps, then reopen the port at N

Flags:
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 返回退出码：0 成功，1 运行错误，2 用法错误
func run(args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("scrhat", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "config file (default $SCRHAT_CONFIG or ./configs/scrhat.yaml)")
	flags.String("dev", "", "serial device (default /dev/ttyS5)")
	flags.Int("baud", 0, "serial baud rate (default 115200)")
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	cmd, err := bootstrap.ParseCommand(flags.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		flags.Usage()
		return 2
	}

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath, flags)
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "ERROR: invalid config:", err)
		return 1
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	// 3) 信号转为 ctx 取消，循环在自己的 goroutine 上停止并执行停机序列
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.NewRunner(cfg, logger, stdout).Run(ctx, cmd); err != nil {
		logger.Error("command failed", zap.String("command", cmd.Name), zap.Error(err))
		fmt.Fprintln(stderr, "ERROR:", err)
		if errors.Is(err, bootstrap.ErrUsage) {
			return 2
		}
		return 1
	}
	return 0
}
