// Package control 调压模块与继电器的长时间运行循环及安全停机
package control

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/taoyao-code/scrhat/internal/device"
)

// Device 循环所需的设备会话能力
type Device interface {
	SetMode(mode device.Mode) error
	EnableChannel(ch int) error
	DisableChannel(ch int) error
	SetAngle(ch int, angle int) error
}

// Relay 循环所需的继电器能力
type Relay interface {
	TurnOn() error
	TurnOff() error
	Release()
}

// Channels 两路通道，始终同步驱动
var Channels = []int{1, 2}

// tick 等待下一个节拍；仅在 ctx 取消时返回 false（临近截止时间也照常等待）
func tick(ctx context.Context, l *rate.Limiter) bool {
	res := l.Reserve()
	d := res.Delay()
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return ctx.Err() == nil
	case <-ctx.Done():
		res.Cancel()
		return false
	}
}
