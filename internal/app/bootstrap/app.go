package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/taoyao-code/scrhat/internal/app"
	cfgpkg "github.com/taoyao-code/scrhat/internal/config"
	"github.com/taoyao-code/scrhat/internal/control"
	"github.com/taoyao-code/scrhat/internal/device"
	"github.com/taoyao-code/scrhat/internal/gpio"
	"github.com/taoyao-code/scrhat/internal/health"
	"github.com/taoyao-code/scrhat/internal/httpserver"
	"github.com/taoyao-code/scrhat/internal/metrics"
	"github.com/taoyao-code/scrhat/internal/script"
	"github.com/taoyao-code/scrhat/internal/serialport"
)

// ErrUsage 命令行用法错误（退出码 2）
var ErrUsage = errors.New("usage error")

// 子命令
const (
	CmdOn1    = "on1"
	CmdOff1   = "off1"
	CmdRamp   = "ramp"
	CmdRelay  = "relay"
	CmdScript = "script"
	CmdBaud   = "baud"
)

// Command 解析后的子命令
type Command struct {
	Name string
	Arg  string
}

// ParseCommand 解析位置参数
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("%w: missing command", ErrUsage)
	}
	cmd := Command{Name: strings.ToLower(args[0])}
	want := 0
	switch cmd.Name {
	case CmdOn1, CmdOff1, CmdRamp, CmdRelay:
	case CmdScript, CmdBaud:
		want = 1
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
	if len(args)-1 != want {
		return Command{}, fmt.Errorf("%w: %s takes %d argument(s)", ErrUsage, cmd.Name, want)
	}
	if want == 1 {
		cmd.Arg = args[1]
	}
	if cmd.Name == CmdBaud {
		if _, err := strconv.ParseUint(cmd.Arg, 10, 32); err != nil {
			return Command{}, fmt.Errorf("%w: invalid baud %q", ErrUsage, cmd.Arg)
		}
	}
	return cmd, nil
}

// Link 模块链路（串口或 I2C）：帧写入端 + 速率切换
type Link interface {
	device.Sink
	health.LinkSource
	Reconfigure(baud int) error
	Close() error
}

// Runner 统一执行流程：按命令装配会话、继电器、HTTP，运行后安全停机
type Runner struct {
	Cfg *cfgpkg.Config
	Log *zap.Logger
	Out io.Writer

	OpenLink    func(cfg cfgpkg.SerialConfig, log *zap.Logger) (Link, error)
	RelayDriver func(cfg cfgpkg.RelayConfig) (gpio.Driver, error)
	// Sleep 会话锁存等待，nil 使用 time.Sleep
	Sleep func(time.Duration)

	runID   string
	started time.Time
	command string
	reg     *prometheus.Registry
	appm    *metrics.AppMetrics
	session *device.Session
	link    Link
	relay   *gpio.Output
}

// NewRunner 使用配置指定的真实链路与引脚后端
func NewRunner(cfg *cfgpkg.Config, log *zap.Logger, out io.Writer) *Runner {
	return &Runner{
		Cfg:         cfg,
		Log:         log,
		Out:         out,
		OpenLink:    openLink,
		RelayDriver: app.NewRelayDriver,
	}
}

func openLink(c cfgpkg.SerialConfig, l *zap.Logger) (Link, error) {
	if app.IsI2C(c) {
		p, err := app.OpenI2C(c, l)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := app.OpenSerial(c, l)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Run 执行命令；ctx 取消即协作停止
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	r.runID = app.GenerateRunID()
	r.started = time.Now()
	r.command = cmd.Name
	r.Log = r.Log.With(zap.String("run_id", r.runID), zap.String("command", cmd.Name))
	r.reg, r.appm = app.NewMetrics()

	r.Log.Info("scrhat starting",
		zap.String("transport", r.Cfg.Serial.Transport),
		zap.String("device", r.Cfg.Serial.Device),
		zap.Int("baud", r.Cfg.Serial.Baud),
		zap.String("checksum", r.Cfg.Device.Checksum))

	switch cmd.Name {
	case CmdOn1, CmdOff1:
		return r.runSwitch(cmd.Name == CmdOn1)
	case CmdRamp:
		return r.runRamp(ctx)
	case CmdRelay:
		return r.runRelay(ctx)
	case CmdScript:
		return r.runScript(ctx, cmd.Arg)
	case CmdBaud:
		bps, _ := strconv.ParseUint(cmd.Arg, 10, 32)
		return r.runBaud(uint32(bps))
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd.Name)
	}
}

func (r *Runner) openSession() error {
	codec, err := app.NewCodec(r.Cfg.Device)
	if err != nil {
		return err
	}
	link, err := r.OpenLink(r.Cfg.Serial, r.Log.Named("link"))
	if err != nil {
		return fmt.Errorf("open link: %w", err)
	}
	r.link = link
	r.session = device.NewSession(link, device.Options{
		Codec:   codec,
		Settle:  r.Cfg.Device.Settle,
		Sleep:   r.Sleep,
		Logger:  r.Log.Named("scr"),
		Metrics: r.appm,
	})
	return nil
}

func (r *Runner) closeLink() {
	if r.link == nil {
		return
	}
	if err := r.link.Close(); err != nil {
		r.Log.Warn("link close failed", zap.Error(err))
	}
}

// runSwitch 开关模式下使能/关闭通道1
func (r *Runner) runSwitch(on bool) error {
	if err := r.openSession(); err != nil {
		return err
	}
	defer r.closeLink()

	if err := r.session.SetMode(device.ModeSwitch); err != nil {
		return err
	}
	word := "OFF"
	if on {
		word = "ON"
		if err := r.session.EnableChannel(1); err != nil {
			return err
		}
	} else if err := r.session.DisableChannel(1); err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "OK: CH1 %s via %s @ %d\n", word, r.link.Device(), r.link.Baud())
	return nil
}

// runRamp 两路同步移相扫描，停止后导通角归零并关闭通道
func (r *Runner) runRamp(ctx context.Context) error {
	if err := r.openSession(); err != nil {
		return err
	}
	defer r.closeLink()

	stop := r.startHTTP()
	defer stop()

	err := control.NewRamp(r.session, r.Cfg.Ramp.Tick, r.Log.Named("ramp"), r.appm).Run(ctx)
	control.Shutdown(r.session, nil, r.Log.Named("shutdown"))
	return err
}

// runRelay 继电器周期翻转；初始逻辑低电平（低电平有效继电器即吸合）
func (r *Runner) runRelay(ctx context.Context) error {
	drv, err := r.RelayDriver(r.Cfg.Relay)
	if err != nil {
		return fmt.Errorf("relay backend: %w", err)
	}
	r.relay = app.NewRelay(drv, r.Cfg.Relay, r.Log, r.appm)
	if err := r.relay.Initialize(gpio.Inactive); err != nil {
		return err
	}
	r.Log.Info("relay initialized",
		zap.String("chip", r.Cfg.Relay.Chip),
		zap.Int("line", r.Cfg.Relay.Line),
		zap.Duration("period", r.Cfg.Relay.Period),
		zap.Bool("device_active_low", r.Cfg.Relay.DeviceActiveLow))

	stop := r.startHTTP()
	defer stop()

	err = control.NewBlink(r.relay, r.Cfg.Relay.Period, r.Log.Named("relay")).Run(ctx)
	control.Shutdown(nil, r.relay, r.Log.Named("shutdown"))
	return err
}

// runScript 执行步骤脚本；仅在被中断时执行安全停机，正常结束保留脚本设定的状态
func (r *Runner) runScript(ctx context.Context, path string) error {
	s, err := script.Load(path)
	if err != nil {
		return err
	}
	if err := r.openSession(); err != nil {
		return err
	}
	defer r.closeLink()

	stop := r.startHTTP()
	defer stop()

	err = s.Run(ctx, r.session, r.Log.Named("script"))
	if ctx.Err() != nil {
		control.Shutdown(r.session, nil, r.Log.Named("shutdown"))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(r.Out, "OK: script %s (%d steps) via %s @ %d\n", s.Name, len(s.Steps), r.link.Device(), r.link.Baud())
	return nil
}

// runBaud 先通知模块切换速率，再以新速率重开串口。
// 模块锁存 param*100；串口链路下主机无法跟随该速率时不发送，避免失联。
func (r *Runner) runBaud(bps uint32) error {
	codec, err := app.NewCodec(r.Cfg.Device)
	if err != nil {
		return err
	}
	param, ok := codec.Baudrate().Encode(bps)
	if !ok {
		r.Log.Warn("baudrate not supported, not sent", zap.Uint32("bps", bps))
		fmt.Fprintf(r.Out, "SKIP: baud %d not supported by module (%s policy)\n", bps, r.Cfg.Device.BaudPolicy)
		return nil
	}
	latched := int(param) * 100
	follow := !app.IsI2C(r.Cfg.Serial)
	if follow && !serialport.IsSupportedBaud(latched) {
		return fmt.Errorf("%w: host port cannot run at %d bps (module would latch %d)", ErrUsage, latched, param)
	}

	if err := r.openSession(); err != nil {
		return err
	}
	defer r.closeLink()

	if _, err := r.session.SetBaudrate(bps); err != nil {
		return err
	}
	if follow {
		if err := r.link.Reconfigure(latched); err != nil {
			r.Log.Warn("module switched but host port cannot follow", zap.Int("bps", latched), zap.Error(err))
			return err
		}
	}
	fmt.Fprintf(r.Out, "OK: baud %d via %s\n", latched, r.link.Device())
	return nil
}

// Status /status 返回的运行快照
type Status struct {
	RunID     string           `json:"run_id"`
	Command   string           `json:"command"`
	StartedAt time.Time        `json:"started_at"`
	Uptime    string           `json:"uptime"`
	Session   *device.Snapshot `json:"session,omitempty"`
	Link      *LinkStatus      `json:"link,omitempty"`
	Relay     *RelayStatus     `json:"relay,omitempty"`
}

// LinkStatus 串口链路
type LinkStatus struct {
	Device string `json:"device"`
	Baud   int    `json:"baud"`
	Open   bool   `json:"open"`
}

// RelayStatus 继电器引脚
type RelayStatus struct {
	State    string `json:"state"`
	Level    string `json:"level"`
	Physical int    `json:"physical"`
}

// Status 只读快照，可在 HTTP goroutine 中调用
func (r *Runner) Status() Status {
	st := Status{
		RunID:     r.runID,
		Command:   r.command,
		StartedAt: r.started,
		Uptime:    time.Since(r.started).Round(time.Second).String(),
	}
	if r.session != nil {
		snap := r.session.Snapshot()
		st.Session = &snap
	}
	if r.link != nil {
		st.Link = &LinkStatus{Device: r.link.Device(), Baud: r.link.Baud(), Open: r.link.IsOpen()}
	}
	if r.relay != nil {
		st.Relay = &RelayStatus{
			State:    r.relay.State().String(),
			Level:    r.relay.Level().String(),
			Physical: r.relay.Physical(),
		}
	}
	return st
}

// startHTTP 启用时在独立 goroutine 中提供只读状态服务，返回关闭函数
func (r *Runner) startHTTP() func() {
	if !r.Cfg.HTTP.Enable {
		return func() {}
	}
	gin.SetMode(gin.ReleaseMode)

	var session health.SessionSource
	var link health.LinkSource
	var relay health.RelaySource
	if r.session != nil {
		session, link = r.session, r.link
	}
	if r.relay != nil {
		relay = r.relay
	}
	agg := app.NewHealthAggregator(session, link, relay)

	srv := app.NewHTTPServer(r.Cfg, r.reg, func() bool { return agg.Ready(context.Background()) })
	srv.Register(func(g gin.IRoutes) {
		app.RegisterHealthRoutes(g, agg)
		httpserver.RegisterStatus(g, func() any { return r.Status() })
	})

	go func() {
		if err := srv.Start(); err != nil {
			r.Log.Error("http server error", zap.Error(err))
		}
	}()
	r.Log.Info("http server started", zap.String("addr", r.Cfg.HTTP.Addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		r.Log.Info("http server stopped")
	}
}
