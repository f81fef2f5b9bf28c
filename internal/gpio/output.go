package gpio

import (
	"errors"
	"sync"

	"github.com/taoyao-code/scrhat/internal/metrics"
	"go.uber.org/zap"
)

// LogicalLevel 逻辑电平
type LogicalLevel int

const (
	Inactive LogicalLevel = 0
	Active   LogicalLevel = 1
)

func (l LogicalLevel) String() string {
	if l == Active {
		return "active"
	}
	return "inactive"
}

// State 引脚生命周期
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateReleased // 终态，需重新构造实例
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// OutputConfig 输出引脚配置
type OutputConfig struct {
	Chip     string
	Offset   int
	Consumer string
	// LineActiveLow 引脚自身的电气属性，仅影响初始化电平
	LineActiveLow bool
	// DeviceActiveLow 外接设备的极性（继电器板为低电平有效）
	DeviceActiveLow bool
}

// Output 极性感知的输出引脚
// 两个极性概念相互独立：引脚电气属性与外接设备约定
type Output struct {
	driver  Driver
	cfg     OutputConfig
	log     *zap.Logger
	metrics *metrics.AppMetrics

	mu       sync.Mutex
	state    State
	level    LogicalLevel
	physical int
	handle   Handle
}

// NewOutput 创建输出引脚，不申请硬件资源
func NewOutput(driver Driver, cfg OutputConfig, log *zap.Logger, m *metrics.AppMetrics) *Output {
	if log == nil {
		log = zap.NewNop()
	}
	return &Output{driver: driver, cfg: cfg, log: log, metrics: m}
}

// Initialize 申请引脚为输出，初始电平按引脚电气属性解释
func (o *Output) Initialize(initial LogicalLevel) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.state {
	case StateInitialized:
		return &AcquisitionError{Chip: o.cfg.Chip, Offset: o.cfg.Offset, Err: ErrLineBusy}
	case StateReleased:
		return &AcquisitionError{Chip: o.cfg.Chip, Offset: o.cfg.Offset, Err: ErrReleased}
	}

	req := Request{
		Chip:      o.cfg.Chip,
		Offset:    o.cfg.Offset,
		Value:     int(initial),
		ActiveLow: o.cfg.LineActiveLow,
		Consumer:  o.cfg.Consumer,
	}
	h, err := o.driver.Acquire(req)
	if err != nil {
		var acqErr *AcquisitionError
		if errors.As(err, &acqErr) {
			return acqErr
		}
		return &AcquisitionError{Chip: o.cfg.Chip, Offset: o.cfg.Offset, Err: err}
	}

	o.handle = h
	o.state = StateInitialized
	o.record(req.InitialPhysical())
	o.log.Info("gpio line initialized",
		zap.String("chip", o.cfg.Chip),
		zap.Int("offset", o.cfg.Offset),
		zap.Int("physical", o.physical),
		zap.Bool("line_active_low", o.cfg.LineActiveLow),
		zap.Bool("device_active_low", o.cfg.DeviceActiveLow))
	return nil
}

// TurnOn 设备逻辑“开”：低电平有效设备驱动物理低电平
func (o *Output) TurnOn() error { return o.drive(Active) }

// TurnOff 设备逻辑“关”：低电平有效设备驱动物理高电平
func (o *Output) TurnOff() error { return o.drive(Inactive) }

// SetDevicePolarity 仅修改后续开关映射，不重新驱动引脚
func (o *Output) SetDevicePolarity(activeLow bool) {
	o.mu.Lock()
	o.cfg.DeviceActiveLow = activeLow
	o.mu.Unlock()
}

// Release 幂等释放；释放失败只记录日志。不恢复任何电平。
func (o *Output) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateReleased {
		return
	}
	if o.handle != nil {
		if err := o.handle.Release(); err != nil {
			o.log.Debug("gpio release failed", zap.Error(err))
		}
		o.handle = nil
	}
	o.state = StateReleased
}

// State 返回生命周期状态
func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Level 返回最后的设备逻辑电平
func (o *Output) Level() LogicalLevel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.level
}

// Physical 返回最后驱动的物理电平
func (o *Output) Physical() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.physical
}

func (o *Output) drive(level LogicalLevel) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateInitialized {
		return ErrNotInitialized
	}
	physical := o.physicalFor(level)
	if err := o.handle.Set(physical); err != nil {
		return &IOError{Op: "set " + level.String(), Err: err}
	}
	if o.metrics != nil && level != o.level {
		o.metrics.RelayTransitions.WithLabelValues(level.String()).Inc()
	}
	o.record(physical)
	return nil
}

// physicalFor 设备逻辑电平 -> 物理电平
func (o *Output) physicalFor(level LogicalLevel) int {
	p := int(level)
	if o.cfg.DeviceActiveLow {
		p ^= 1
	}
	return p
}

// record 根据物理电平更新设备逻辑电平
func (o *Output) record(physical int) {
	o.physical = physical
	if o.physicalFor(Active) == physical {
		o.level = Active
	} else {
		o.level = Inactive
	}
	if o.metrics != nil {
		o.metrics.RelayPhysical.Set(float64(physical))
	}
}
