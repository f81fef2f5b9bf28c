package health

import (
	"context"
	"time"

	"github.com/taoyao-code/scrhat/internal/gpio"
)

// RelaySource 继电器引脚状态来源
type RelaySource interface {
	State() gpio.State
	Level() gpio.LogicalLevel
	Physical() int
}

// RelayChecker 继电器引脚检查：仅在已初始化时健康
type RelayChecker struct {
	relay RelaySource
}

func NewRelayChecker(relay RelaySource) *RelayChecker {
	return &RelayChecker{relay: relay}
}

func (c *RelayChecker) Name() string { return "relay" }

func (c *RelayChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	state := c.relay.State()

	details := map[string]any{"state": state.String()}
	if state != gpio.StateInitialized {
		return finish(start, StatusUnhealthy, "relay line "+state.String(), details)
	}
	details["level"] = c.relay.Level().String()
	details["physical"] = c.relay.Physical()
	return finish(start, StatusHealthy, "ok", details)
}
