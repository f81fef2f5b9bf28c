package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/scrhat/internal/config"
	"github.com/taoyao-code/scrhat/internal/gpio"
	"github.com/taoyao-code/scrhat/internal/protocol/scr"
	"github.com/taoyao-code/scrhat/internal/serialport"
)

type fakeLink struct {
	frames      [][]byte
	baud        int
	closed      bool
	reconfErr   error
	cancelAfter int
	cancel      context.CancelFunc
}

func (l *fakeLink) Write(p []byte) error {
	l.frames = append(l.frames, append([]byte(nil), p...))
	if l.cancel != nil && len(l.frames) == l.cancelAfter {
		l.cancel()
	}
	return nil
}

func (l *fakeLink) IsOpen() bool   { return !l.closed }
func (l *fakeLink) Device() string { return "/dev/ttyFAKE" }
func (l *fakeLink) Baud() int      { return l.baud }
func (l *fakeLink) Close() error   { l.closed = true; return nil }

// Reconfigure 与真实串口一样只接受主机波特率表中的速率
func (l *fakeLink) Reconfigure(baud int) error {
	if l.reconfErr != nil {
		return l.reconfErr
	}
	if !serialport.IsSupportedBaud(baud) {
		return fmt.Errorf("%w: %d", serialport.ErrUnsupportedBaud, baud)
	}
	l.baud = baud
	return nil
}

func testConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		Serial: cfgpkg.SerialConfig{Device: "/dev/ttyFAKE", Baud: 115200},
		Device: cfgpkg.DeviceConfig{Checksum: "xor", BaudPolicy: "strict", Settle: time.Millisecond},
		Relay: cfgpkg.RelayConfig{
			Backend: "memory", Chip: "gpiochip0", Line: 259,
			DeviceActiveLow: true, Period: time.Millisecond, Consumer: "test",
		},
		Ramp: cfgpkg.RampConfig{Tick: time.Microsecond},
	}
}

func newTestRunner(link *fakeLink, drv *gpio.MemoryDriver) (*Runner, *bytes.Buffer) {
	out := &bytes.Buffer{}
	r := NewRunner(testConfig(), zap.NewNop(), out)
	r.OpenLink = func(c cfgpkg.SerialConfig, _ *zap.Logger) (Link, error) {
		link.baud = c.Baud
		return link, nil
	}
	r.RelayDriver = func(cfgpkg.RelayConfig) (gpio.Driver, error) { return drv, nil }
	r.Sleep = func(time.Duration) {}
	return r, out
}

func frame(reg scr.Register, param uint16) []byte {
	return scr.Encode(scr.ChecksumXOR, reg, param).Bytes()
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Command
		wantErr bool
	}{
		{"开通道1", []string{"on1"}, Command{Name: CmdOn1}, false},
		{"大小写不敏感", []string{"OFF1"}, Command{Name: CmdOff1}, false},
		{"脚本带文件", []string{"script", "bench.yaml"}, Command{Name: CmdScript, Arg: "bench.yaml"}, false},
		{"波特率", []string{"baud", "9600"}, Command{Name: CmdBaud, Arg: "9600"}, false},
		{"缺少命令", nil, Command{}, true},
		{"未知命令", []string{"dim"}, Command{}, true},
		{"多余参数", []string{"ramp", "fast"}, Command{}, true},
		{"脚本缺文件", []string{"script"}, Command{}, true},
		{"波特率非数字", []string{"baud", "fast"}, Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.args)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_On1Off1(t *testing.T) {
	link := &fakeLink{}
	r, out := newTestRunner(link, nil)
	require.NoError(t, r.Run(context.Background(), Command{Name: CmdOn1}))

	assert.Equal(t, [][]byte{frame(scr.RegMode, 0), frame(scr.RegChannelEnable, 1)}, link.frames)
	assert.Equal(t, "OK: CH1 ON via /dev/ttyFAKE @ 115200\n", out.String())
	assert.True(t, link.closed)
	assert.Equal(t, uint8(1), r.Status().Session.ChannelMask)

	link = &fakeLink{}
	r, out = newTestRunner(link, nil)
	require.NoError(t, r.Run(context.Background(), Command{Name: CmdOff1}))
	assert.Equal(t, frame(scr.RegChannelEnable, 0), link.frames[1])
	assert.Equal(t, "OK: CH1 OFF via /dev/ttyFAKE @ 115200\n", out.String())
}

func TestRun_OpenFailure(t *testing.T) {
	r, out := newTestRunner(&fakeLink{}, nil)
	r.OpenLink = func(cfgpkg.SerialConfig, *zap.Logger) (Link, error) {
		return nil, errors.New("no such device")
	}
	err := r.Run(context.Background(), Command{Name: CmdOn1})
	assert.ErrorContains(t, err, "no such device")
	assert.Empty(t, out.String())
}

func TestRun_RampShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 准备 5 帧 + 10 拍（每拍 2 帧）
	link := &fakeLink{cancel: cancel, cancelAfter: 5 + 20}
	r, _ := newTestRunner(link, nil)
	require.NoError(t, r.Run(ctx, Command{Name: CmdRamp}))

	require.Len(t, link.frames, 25+4)
	assert.Equal(t, frame(scr.RegMode, 1), link.frames[0])
	assert.Equal(t, frame(scr.RegAngle1, 9), link.frames[23])

	tail := link.frames[25:]
	assert.Equal(t, [][]byte{
		frame(scr.RegAngle1, 0),
		frame(scr.RegAngle2, 0),
		frame(scr.RegChannelEnable, 0b10),
		frame(scr.RegChannelEnable, 0),
	}, tail)
	assert.True(t, link.closed)
}

func TestRun_RelayBlinkAndRelease(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	drv := gpio.NewMemoryDriver()
	var line *gpio.MemoryLine
	r, _ := newTestRunner(nil, drv)
	r.RelayDriver = func(cfgpkg.RelayConfig) (gpio.Driver, error) {
		return recordingDriver{drv, &line}, nil
	}

	require.NoError(t, r.Run(ctx, Command{Name: CmdRelay}))
	require.NotNil(t, line)

	assert.Equal(t, 0, line.Writes[0], "初始物理低电平，继电器吸合")
	assert.GreaterOrEqual(t, len(line.Writes), 3)
	assert.Equal(t, 1, line.Last(), "停止后关断（物理高）")
	_, held := drv.Line("gpiochip0", 259)
	assert.False(t, held, "停止后释放引脚")
	assert.Equal(t, "released", r.Status().Relay.State)
}

// recordingDriver 记住申请到的引脚，释放后仍可检查写入记录
type recordingDriver struct {
	*gpio.MemoryDriver
	line **gpio.MemoryLine
}

func (d recordingDriver) Acquire(req gpio.Request) (gpio.Handle, error) {
	h, err := d.MemoryDriver.Acquire(req)
	if err == nil {
		*d.line = h.(*gpio.MemoryLine)
	}
	return h, err
}

func TestRun_RelayBusyLine(t *testing.T) {
	drv := gpio.NewMemoryDriver()
	_, err := drv.Acquire(gpio.Request{Chip: "gpiochip0", Offset: 259})
	require.NoError(t, err)

	r, _ := newTestRunner(nil, drv)
	err = r.Run(context.Background(), Command{Name: CmdRelay})
	var acqErr *gpio.AcquisitionError
	assert.ErrorAs(t, err, &acqErr)
	assert.ErrorIs(t, err, gpio.ErrLineBusy)
}

func TestRun_Script(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: bench
steps:
  - op: mode
    mode: phase
  - op: enable
    channel: 2
  - op: angle
    channel: 2
    value: 45
`), 0o600))

	link := &fakeLink{}
	r, out := newTestRunner(link, nil)
	require.NoError(t, r.Run(context.Background(), Command{Name: CmdScript, Arg: path}))

	assert.Equal(t, [][]byte{
		frame(scr.RegMode, 1),
		frame(scr.RegChannelEnable, 2),
		frame(scr.RegAngle2, 45),
	}, link.frames, "正常结束不执行停机序列")
	assert.Contains(t, out.String(), "OK: script bench (3 steps)")
}

func TestRun_ScriptMissingFile(t *testing.T) {
	link := &fakeLink{}
	r, _ := newTestRunner(link, nil)
	err := r.Run(context.Background(), Command{Name: CmdScript, Arg: filepath.Join(t.TempDir(), "none.yaml")})
	assert.Error(t, err)
	assert.Empty(t, link.frames, "脚本无效时不打开串口")
}

func TestRun_Baud(t *testing.T) {
	link := &fakeLink{}
	r, out := newTestRunner(link, nil)
	require.NoError(t, r.Run(context.Background(), Command{Name: CmdBaud, Arg: "9600"}))

	assert.Equal(t, [][]byte{frame(scr.RegBaudrate, 96)}, link.frames)
	assert.Equal(t, 9600, link.baud, "模块切换后串口跟随")
	assert.Equal(t, "OK: baud 9600 via /dev/ttyFAKE\n", out.String())
}

func TestRun_BaudOutOfRangeSkipped(t *testing.T) {
	link := &fakeLink{}
	r, out := newTestRunner(link, nil)
	require.NoError(t, r.Run(context.Background(), Command{Name: CmdBaud, Arg: "300"}))

	assert.Empty(t, link.frames)
	assert.Zero(t, link.baud, "未打开串口")
	assert.Contains(t, out.String(), "SKIP")
}

func TestRun_BaudHostMustFollow(t *testing.T) {
	tests := []struct {
		name     string
		arg      string
		policy   string
		usageErr bool
		param    uint16
		hostBaud int
	}{
		{"主机表外速率不发送", "14400", "strict", true, 0, 0},
		{"截断后落在主机表内", "115250", "strict", false, 1152, 115200},
		{"always策略钳位后主机无法跟随", "7000000", "always", true, 0, 0},
		{"高速率", "921600", "always", false, 9216, 921600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := &fakeLink{}
			r, out := newTestRunner(link, nil)
			r.Cfg.Device.BaudPolicy = tt.policy

			err := r.Run(context.Background(), Command{Name: CmdBaud, Arg: tt.arg})
			if tt.usageErr {
				require.ErrorIs(t, err, ErrUsage)
				assert.Empty(t, link.frames, "模块不得先于主机切换")
				assert.Empty(t, out.String())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, [][]byte{frame(scr.RegBaudrate, tt.param)}, link.frames)
			assert.Equal(t, tt.hostBaud, link.baud)
			assert.Equal(t, fmt.Sprintf("OK: baud %d via /dev/ttyFAKE\n", tt.hostBaud), out.String())
		})
	}
}

func TestRun_BaudOverI2C(t *testing.T) {
	link := &fakeLink{}
	r, out := newTestRunner(link, nil)
	r.Cfg.Serial.Transport = "i2c"

	require.NoError(t, r.Run(context.Background(), Command{Name: CmdBaud, Arg: "14400"}))
	assert.Equal(t, [][]byte{frame(scr.RegBaudrate, 144)}, link.frames, "I2C 下只改模块串口速率")
	assert.Equal(t, 115200, link.baud, "不重配主机链路")
	assert.Equal(t, "OK: baud 14400 via /dev/ttyFAKE\n", out.String())
}
