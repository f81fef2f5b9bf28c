package app

import (
	"strings"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/scrhat/internal/config"
	"github.com/taoyao-code/scrhat/internal/i2cport"
	"github.com/taoyao-code/scrhat/internal/protocol/scr"
	"github.com/taoyao-code/scrhat/internal/serialport"
)

// TransportI2C serial.transport 取值：经 I2C 下发
const TransportI2C = "i2c"

// IsI2C 链路是否为 I2C；I2C 下主机没有需要跟随的串口速率
func IsI2C(cfg cfgpkg.SerialConfig) bool {
	return strings.EqualFold(cfg.Transport, TransportI2C)
}

// NewCodec 按配置选择校验与波特率编码策略，运行期间不再切换
func NewCodec(cfg cfgpkg.DeviceConfig) (scr.Codec, error) {
	cs, err := scr.ParseChecksumPolicy(cfg.Checksum)
	if err != nil {
		return scr.Codec{}, err
	}
	bp, err := scr.ParseBaudPolicy(cfg.BaudPolicy)
	if err != nil {
		return scr.Codec{}, err
	}
	return scr.NewCodec(cs, bp), nil
}

// OpenSerial 打开串口（8N1）
func OpenSerial(cfg cfgpkg.SerialConfig, log *zap.Logger) (*serialport.Port, error) {
	return serialport.Open(serialport.Config{
		Device:      cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}, log)
}

// OpenI2C 打开 I2C 链路（/dev/i2c-1）
func OpenI2C(cfg cfgpkg.SerialConfig, log *zap.Logger) (*i2cport.Port, error) {
	return i2cport.Open(i2cport.Config{Address: byte(cfg.I2CAddress)}, log)
}
