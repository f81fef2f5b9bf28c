package control

import (
	"context"
	"strconv"
	"time"

	"github.com/taoyao-code/scrhat/internal/device"
	"github.com/taoyao-code/scrhat/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTick 参考节拍
const DefaultTick = 100 * time.Millisecond

// RampPeriod 一个完整的升降周期
const RampPeriod = 360

// AngleAt 第 step 拍的导通角：0..179 上升，随后 179..0 镜像下降
func AngleAt(step int) int {
	step %= RampPeriod
	if step < 0 {
		step += RampPeriod
	}
	if step <= device.MaxAngle {
		return step
	}
	return RampPeriod - 1 - step
}

// Ramp 移相调压斜坡：两路通道同步扫描导通角
type Ramp struct {
	dev     Device
	limiter *rate.Limiter
	log     *zap.Logger
	metrics *metrics.AppMetrics
	step    int
}

// NewRamp tick<=0 时不限速
func NewRamp(dev Device, tick time.Duration, log *zap.Logger, m *metrics.AppMetrics) *Ramp {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if tick > 0 {
		limit = rate.Every(tick)
	}
	return &Ramp{
		dev:     dev,
		limiter: rate.NewLimiter(limit, 1),
		log:     log,
		metrics: m,
	}
}

// Prepare 进入移相模式，导通角归零后使能两路
func (r *Ramp) Prepare() error {
	if err := r.dev.SetMode(device.ModePhaseAngle); err != nil {
		return err
	}
	for _, ch := range Channels {
		if err := r.dev.SetAngle(ch, 0); err != nil {
			return err
		}
	}
	for _, ch := range Channels {
		if err := r.dev.EnableChannel(ch); err != nil {
			return err
		}
	}
	return nil
}

// Run 准备后循环推进，直到 ctx 取消（返回 nil）或写入失败
func (r *Ramp) Run(ctx context.Context) error {
	if err := r.Prepare(); err != nil {
		return err
	}
	r.log.Info("ramp started", zap.Float64("tick_hz", float64(r.limiter.Limit())))

	for {
		if !tick(ctx, r.limiter) {
			r.log.Info("ramp stopped", zap.Int("step", r.step))
			return nil
		}
		if err := r.Step(); err != nil {
			return err
		}
	}
}

// Step 下发当前拍的导通角并前进一拍
func (r *Ramp) Step() error {
	angle := AngleAt(r.step)
	for _, ch := range Channels {
		if err := r.dev.SetAngle(ch, angle); err != nil {
			r.log.Error("ramp write failed", zap.Int("step", r.step), zap.Int("channel", ch), zap.Error(err))
			return err
		}
		if r.metrics != nil {
			r.metrics.RampAngle.WithLabelValues(strconv.Itoa(ch)).Set(float64(angle))
		}
	}
	if r.metrics != nil {
		r.metrics.RampSteps.Inc()
	}
	r.step = (r.step + 1) % RampPeriod
	return nil
}

// Position 下一拍的序号
func (r *Ramp) Position() int { return r.step }
