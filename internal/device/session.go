package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/taoyao-code/scrhat/internal/metrics"
	"github.com/taoyao-code/scrhat/internal/protocol/scr"
	"go.uber.org/zap"
)

// DefaultSettle 模块锁存一条命令所需的最小间隔
const DefaultSettle = 100 * time.Millisecond

// 导通角上限（含）
const MaxAngle = 179

// Sink 字节写入能力：必须完整写入，部分写入视为失败
type Sink interface {
	Write(p []byte) error
}

// Mode 工作模式
type Mode byte

const (
	ModeSwitch     Mode = 0 // 开关模式
	ModePhaseAngle Mode = 1 // 调压（移相）模式
)

func (m Mode) String() string {
	switch m {
	case ModeSwitch:
		return "switch"
	case ModePhaseAngle:
		return "phase-angle"
	default:
		return "mode_" + strconv.Itoa(int(m))
	}
}

// ParseMode 解析模式名称
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "switch", "0":
		return ModeSwitch, nil
	case "phase", "phase-angle", "phase_angle", "regulation", "1":
		return ModePhaseAngle, nil
	default:
		return 0, invalidParam("mode %q", s)
	}
}

// Options 会话参数
type Options struct {
	Codec   scr.Codec
	Settle  time.Duration       // 0 表示使用 DefaultSettle，负数表示不等待
	Sleep   func(time.Duration) // 测试可替换
	Logger  *zap.Logger
	Metrics *metrics.AppMetrics
}

// Session 寄存器级设备会话
// 通道使能掩码是会话对设备状态的唯一认知（设备无应答），初始为0
type Session struct {
	sink    Sink
	codec   scr.Codec
	settle  time.Duration
	sleep   func(time.Duration)
	log     *zap.Logger
	metrics *metrics.AppMetrics

	mu         sync.RWMutex
	mask       uint8
	mode       Mode
	modeSet    bool
	framesSent uint64
	lastFrame  scr.Frame
	lastErr    error
}

// NewSession 创建会话，绑定一个字节写入端
func NewSession(sink Sink, opts Options) *Session {
	s := &Session{
		sink:    sink,
		codec:   opts.Codec,
		settle:  opts.Settle,
		sleep:   opts.Sleep,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if s.settle == 0 {
		s.settle = DefaultSettle
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// SetMode 设置工作模式
func (s *Session) SetMode(mode Mode) error {
	if mode != ModeSwitch && mode != ModePhaseAngle {
		return invalidParam("mode %d", mode)
	}
	if err := s.send(scr.RegMode, uint16(mode)&0x01); err != nil {
		return err
	}
	s.mu.Lock()
	s.mode = mode
	s.modeSet = true
	s.mu.Unlock()
	return nil
}

// EnableChannel 使能通道；帧中携带完整掩码，不会覆盖另一通道
func (s *Session) EnableChannel(ch int) error {
	bit, err := channelBit(ch)
	if err != nil {
		return err
	}
	return s.writeMask(s.ChannelMask() | bit)
}

// DisableChannel 关闭通道
func (s *Session) DisableChannel(ch int) error {
	bit, err := channelBit(ch)
	if err != nil {
		return err
	}
	return s.writeMask(s.ChannelMask() &^ bit)
}

// SetAngle 设置导通角 0~179（设备只写，不记录）
func (s *Session) SetAngle(ch int, angle int) error {
	var reg scr.Register
	switch ch {
	case 1:
		reg = scr.RegAngle1
	case 2:
		reg = scr.RegAngle2
	default:
		return invalidParam("channel %d", ch)
	}
	if angle < 0 || angle > MaxAngle {
		return invalidParam("angle %d out of [0,%d]", angle, MaxAngle)
	}
	return s.send(reg, uint16(angle))
}

// SetGridFrequency 设置电网频率，仅接受 50/60，其他值不发送也不报错
func (s *Session) SetGridFrequency(hz int) error {
	if hz != 50 && hz != 60 {
		s.log.Debug("grid frequency ignored", zap.Int("hz", hz))
		return nil
	}
	return s.send(scr.RegFrequency, uint16(hz))
}

// Reset 延时复位。复位后本地掩码不清零，调用方需重新下发使能。
func (s *Session) Reset(delayMs uint16) error {
	return s.send(scr.RegReset, delayMs)
}

// SetBaudrate 设置模块波特率；sent=false 表示按编码策略未发送。
// 发送成功后由调用方把串口切换到新速率。
func (s *Session) SetBaudrate(bps uint32) (sent bool, err error) {
	param, ok := s.codec.Baudrate().Encode(bps)
	if !ok {
		s.log.Warn("baudrate not supported, not sent",
			zap.Uint32("bps", bps),
			zap.String("policy", s.codec.Baudrate().Policy.String()))
		return false, nil
	}
	if err := s.send(scr.RegBaudrate, param); err != nil {
		return false, err
	}
	return true, nil
}

// ChannelMask 返回当前认知的通道使能掩码
func (s *Session) ChannelMask() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mask
}

// Mode 返回最后下发的模式；ok=false 表示尚未下发
func (s *Session) Mode() (Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, s.modeSet
}

// Snapshot 会话状态快照
type Snapshot struct {
	ChannelMask uint8  `json:"channel_mask"`
	Channel1    bool   `json:"channel1"`
	Channel2    bool   `json:"channel2"`
	Mode        string `json:"mode,omitempty"`
	Checksum    string `json:"checksum"`
	FramesSent  uint64 `json:"frames_sent"`
	LastFrame   string `json:"last_frame,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Snapshot 返回状态快照（供 /status 与健康检查读取）
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ChannelMask: s.mask,
		Channel1:    s.mask&0x01 != 0,
		Channel2:    s.mask&0x02 != 0,
		Checksum:    s.codec.Checksum().String(),
		FramesSent:  s.framesSent,
	}
	if s.modeSet {
		snap.Mode = s.mode.String()
	}
	if s.framesSent > 0 {
		snap.LastFrame = s.lastFrame.Hex()
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}

func (s *Session) writeMask(mask uint8) error {
	if err := s.send(scr.RegChannelEnable, uint16(mask)); err != nil {
		return err
	}
	s.mu.Lock()
	s.mask = mask
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ChannelMask.Set(float64(mask))
	}
	return nil
}

// send 编码一帧、写入、等待锁存间隔
func (s *Session) send(reg scr.Register, param uint16) error {
	frame := s.codec.Encode(reg, param)

	if err := s.sink.Write(frame.Bytes()); err != nil {
		ioErr := &IOError{Register: reg, Err: err}
		s.mu.Lock()
		s.lastErr = ioErr
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.WriteErrors.WithLabelValues(reg.String()).Inc()
		}
		s.log.Error("scr frame write failed",
			zap.String("register", reg.String()),
			zap.String("frame", frame.Hex()),
			zap.Error(err))
		return ioErr
	}

	s.mu.Lock()
	s.framesSent++
	s.lastFrame = frame
	s.lastErr = nil
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.FramesSent.WithLabelValues(reg.String()).Inc()
		s.metrics.BytesWritten.Add(scr.FrameLen)
	}
	s.log.Debug("scr frame sent",
		zap.String("register", reg.String()),
		zap.Uint16("param", param),
		zap.String("frame", frame.Hex()))

	if s.settle > 0 {
		s.sleep(s.settle)
	}
	return nil
}

func channelBit(ch int) (uint8, error) {
	if ch != 1 && ch != 2 {
		return 0, invalidParam("channel %d", ch)
	}
	return 1 << uint(ch-1), nil
}

// String 便于日志输出
func (s Snapshot) String() string {
	return fmt.Sprintf("mask=0b%02b mode=%s frames=%d", s.ChannelMask, s.Mode, s.FramesSent)
}
