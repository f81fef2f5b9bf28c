package i2cport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/reef-pi/rpi/i2c"
	"go.uber.org/zap"

	"github.com/taoyao-code/scrhat/internal/protocol/scr"
)

// DefaultAddress 模块出厂 I2C 从机地址
const DefaultAddress byte = 0x47

var (
	// ErrClosedBus 总线已关闭
	ErrClosedBus = errors.New("i2c bus is closed")
	// ErrNoBaudrate I2C 链路没有主机侧波特率
	ErrNoBaudrate = errors.New("i2c link has no baud rate")
)

// Bus 总线写入能力，reef-pi i2c.Bus 满足该接口
type Bus interface {
	WriteBytes(addr byte, value []byte) error
	Close() error
}

type opener func() (Bus, error)

func openReefPi() (Bus, error) {
	return i2c.New()
}

// Config I2C 链路配置
type Config struct {
	Address byte
}

// Port 经 I2C 下发命令：每帧写成 reg paramH paramL 三个字节，无帧头与校验
type Port struct {
	mu   sync.Mutex
	addr byte
	bus  Bus
	log  *zap.Logger
}

// Open 打开 /dev/i2c-1
func Open(cfg Config, log *zap.Logger) (*Port, error) {
	return openWith(cfg, log, openReefPi)
}

func openWith(cfg Config, log *zap.Logger, open opener) (*Port, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Address == 0 {
		cfg.Address = DefaultAddress
	}
	bus, err := open()
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	log.Info("i2c bus opened", zap.String("addr", fmt.Sprintf("0x%02X", cfg.Address)))
	return &Port{addr: cfg.Address, bus: bus, log: log}, nil
}

// Write 接收会话编码好的整帧，校验帧头后只把寄存器与16位参数写到从机
func (p *Port) Write(b []byte) error {
	if len(b) != scr.FrameLen {
		return scr.ErrFrameLength
	}
	if b[0] != scr.Header1 || b[1] != scr.Header2 {
		return scr.ErrBadHeader
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bus == nil {
		return ErrClosedBus
	}
	if err := p.bus.WriteBytes(p.addr, []byte{b[2], b[3], b[4]}); err != nil {
		return fmt.Errorf("write %s: %w", p.device(), err)
	}
	return nil
}

// Reconfigure 总线时钟与模块串口速率无关，始终失败
func (p *Port) Reconfigure(baud int) error {
	return fmt.Errorf("%w: %d", ErrNoBaudrate, baud)
}

// Close 关闭总线，可重复调用
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bus == nil {
		return nil
	}
	err := p.bus.Close()
	p.bus = nil
	return err
}

// Device 形如 i2c-1@0x47
func (p *Port) Device() string { return p.device() }

func (p *Port) device() string { return fmt.Sprintf("i2c-1@0x%02X", p.addr) }

// Baud I2C 链路恒为 0
func (p *Port) Baud() int { return 0 }

// IsOpen 总线是否打开
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bus != nil
}
