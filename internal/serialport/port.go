package serialport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"
	"go.uber.org/zap"
)

var (
	// ErrShortWrite 写入字节数少于帧长度
	ErrShortWrite = errors.New("short write")
	// ErrClosedPort 串口已关闭
	ErrClosedPort = errors.New("serial port is closed")
	// ErrUnsupportedBaud 主机串口不支持的波特率
	ErrUnsupportedBaud = errors.New("unsupported baud rate")
)

// 默认串口：UART5，115200 8N1
const (
	DefaultDevice = "/dev/ttyS5"
	DefaultBaud   = 115200
)

// SupportedBauds 主机侧可配置的波特率
var SupportedBauds = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200, 230400, 460800, 921600}

// IsSupportedBaud 判断主机侧是否支持
func IsSupportedBaud(baud int) bool {
	for _, b := range SupportedBauds {
		if b == baud {
			return true
		}
	}
	return false
}

// Config 串口配置；数据位/校验/停止位固定为 8N1，无硬件流控
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
}

type opener func(c *serial.Config) (io.ReadWriteCloser, error)

func openTarm(c *serial.Config) (io.ReadWriteCloser, error) {
	return serial.OpenPort(c)
}

// Port 串口字节写入端
type Port struct {
	mu   sync.Mutex
	cfg  Config
	rw   io.ReadWriteCloser
	open opener
	log  *zap.Logger
}

// Open 打开串口
func Open(cfg Config, log *zap.Logger) (*Port, error) {
	return openWith(cfg, log, openTarm)
}

func openWith(cfg Config, log *zap.Logger, open opener) (*Port, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	p := &Port{cfg: cfg, open: open, log: log}
	if err := p.openLocked(cfg.Baud); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Port) openLocked(baud int) error {
	if !IsSupportedBaud(baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
	rw, err := p.open(&serial.Config{
		Name:        p.cfg.Device,
		Baud:        baud,
		ReadTimeout: p.cfg.ReadTimeout,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", p.cfg.Device, err)
	}
	p.rw = rw
	p.cfg.Baud = baud
	p.log.Info("serial port opened",
		zap.String("device", p.cfg.Device),
		zap.Int("baud", baud))
	return nil
}

// Write 完整写入 b，否则返回错误
func (p *Port) Write(b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rw == nil {
		return ErrClosedPort
	}
	n, err := p.rw.Write(b)
	if err != nil {
		return fmt.Errorf("write %s: %w", p.cfg.Device, err)
	}
	if n != len(b) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, len(b))
	}
	return nil
}

// Reconfigure 以新的波特率重新打开串口（模块已切换速率之后调用）
func (p *Port) Reconfigure(baud int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !IsSupportedBaud(baud) {
		return fmt.Errorf("%w: %d", ErrUnsupportedBaud, baud)
	}
	if p.rw != nil {
		if err := p.rw.Close(); err != nil {
			p.log.Warn("serial close before reconfigure failed", zap.Error(err))
		}
		p.rw = nil
	}
	return p.openLocked(baud)
}

// Close 关闭串口，可重复调用
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rw == nil {
		return nil
	}
	err := p.rw.Close()
	p.rw = nil
	return err
}

// Device 返回设备路径
func (p *Port) Device() string { return p.cfg.Device }

// Baud 返回当前波特率
func (p *Port) Baud() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Baud
}

// IsOpen 串口是否打开
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rw != nil
}
