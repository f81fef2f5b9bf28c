package control

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBlinkPeriod 继电器翻转周期
const DefaultBlinkPeriod = time.Second

// Blink 继电器周期翻转，首拍为“开”
type Blink struct {
	relay   Relay
	limiter *rate.Limiter
	log     *zap.Logger
	on      bool
	toggles int
}

func NewBlink(relay Relay, period time.Duration, log *zap.Logger) *Blink {
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if period > 0 {
		limit = rate.Every(period)
	}
	return &Blink{relay: relay, limiter: rate.NewLimiter(limit, 1), log: log, on: true}
}

// Run 翻转直到 ctx 取消；停机时的关断与释放由 Shutdown 负责
func (b *Blink) Run(ctx context.Context) error {
	for {
		if !tick(ctx, b.limiter) {
			return nil
		}

		var err error
		if b.on {
			err = b.relay.TurnOn()
		} else {
			err = b.relay.TurnOff()
		}
		if err != nil {
			return err
		}
		b.log.Info("relay toggled", zap.Bool("on", b.on))
		b.on = !b.on
		b.toggles++
	}
}

// Toggles 已完成的翻转次数
func (b *Blink) Toggles() int { return b.toggles }
