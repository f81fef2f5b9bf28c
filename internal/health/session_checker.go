package health

import (
	"context"
	"time"

	"github.com/taoyao-code/scrhat/internal/device"
)

// SessionSource 会话状态来源
type SessionSource interface {
	Snapshot() device.Snapshot
}

// LinkSource 模块链路状态来源，I2C 链路 Baud 为 0
type LinkSource interface {
	IsOpen() bool
	Device() string
	Baud() int
}

// SessionChecker 调压模块会话检查：串口关闭为不健康，最近一次写入失败为降级
type SessionChecker struct {
	session SessionSource
	link    LinkSource
}

// NewSessionChecker link 可为 nil
func NewSessionChecker(session SessionSource, link LinkSource) *SessionChecker {
	return &SessionChecker{session: session, link: link}
}

func (c *SessionChecker) Name() string { return "scr" }

func (c *SessionChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	snap := c.session.Snapshot()

	details := map[string]any{
		"channel_mask": snap.ChannelMask,
		"frames_sent":  snap.FramesSent,
		"checksum":     snap.Checksum,
	}
	if snap.Mode != "" {
		details["mode"] = snap.Mode
	}

	status, message := StatusHealthy, "ok"
	if snap.LastError != "" {
		status, message = StatusDegraded, snap.LastError
	}
	if c.link != nil {
		details["device"] = c.link.Device()
		details["baud"] = c.link.Baud()
		if !c.link.IsOpen() {
			status, message = StatusUnhealthy, "link closed"
		}
	}
	return finish(start, status, message, details)
}
