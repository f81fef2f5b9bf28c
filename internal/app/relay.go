package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/scrhat/internal/config"
	"github.com/taoyao-code/scrhat/internal/gpio"
	"github.com/taoyao-code/scrhat/internal/gpio/cdev"
	"github.com/taoyao-code/scrhat/internal/gpio/rpio"
	"github.com/taoyao-code/scrhat/internal/metrics"
)

// NewRelayDriver 启动时按配置选择唯一的引脚后端
func NewRelayDriver(cfg cfgpkg.RelayConfig) (gpio.Driver, error) {
	switch strings.ToLower(cfg.Backend) {
	case "cdev", "":
		return cdev.New(cfg.ABIVersion)
	case "rpio":
		return rpio.New(), nil
	case "memory":
		return gpio.NewMemoryDriver(), nil
	default:
		return nil, fmt.Errorf("unknown relay backend %q", cfg.Backend)
	}
}

// NewRelay 创建继电器输出引脚（未申请）
func NewRelay(drv gpio.Driver, cfg cfgpkg.RelayConfig, log *zap.Logger, m *metrics.AppMetrics) *gpio.Output {
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = cdev.DefaultConsumer
	}
	return gpio.NewOutput(drv, gpio.OutputConfig{
		Chip:            cfg.Chip,
		Offset:          cfg.Line,
		Consumer:        consumer,
		LineActiveLow:   cfg.LineActiveLow,
		DeviceActiveLow: cfg.DeviceActiveLow,
	}, log.Named("relay"), m)
}
