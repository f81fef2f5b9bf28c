package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/taoyao-code/scrhat/internal/protocol/scr"
)

// EnvPrefix 环境变量前缀，如 SCRHAT_SERIAL_DEVICE
const EnvPrefix = "SCRHAT"

// AppConfig 应用基础信息
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// SerialConfig 模块链路配置。uart 为 8N1 无流控串口；i2c 走 /dev/i2c-1，Device/Baud 不生效
type SerialConfig struct {
	Transport   string        `mapstructure:"transport"` // uart | i2c
	Device      string        `mapstructure:"device"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
	I2CAddress  int           `mapstructure:"i2cAddress"`
}

// DeviceConfig 调压模块协议参数
type DeviceConfig struct {
	Checksum   string        `mapstructure:"checksum"`   // xor | sum
	BaudPolicy string        `mapstructure:"baudPolicy"` // strict | always
	Settle     time.Duration `mapstructure:"settle"`
}

// RelayConfig 继电器输出引脚
type RelayConfig struct {
	Backend         string        `mapstructure:"backend"` // cdev | rpio | memory
	Chip            string        `mapstructure:"chip"`
	Line            int           `mapstructure:"line"`
	LineActiveLow   bool          `mapstructure:"lineActiveLow"`
	DeviceActiveLow bool          `mapstructure:"deviceActiveLow"`
	ABIVersion      int           `mapstructure:"abiVersion"` // 0 自动，1/2 指定
	Period          time.Duration `mapstructure:"period"`
	Consumer        string        `mapstructure:"consumer"`
}

// RampConfig 斜坡节拍
type RampConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

// HTTPConfig 状态 HTTP 服务配置
type HTTPConfig struct {
	Enable       bool          `mapstructure:"enable"`
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

// LumberjackConfig 日志滚动（lumberjack）配置，Filename 为空时只输出到控制台
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig 日志级别与输出配置
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig Prometheus 指标暴露配置
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Config 顶层配置结构
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Serial  SerialConfig  `mapstructure:"serial"`
	Device  DeviceConfig  `mapstructure:"device"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Ramp    RampConfig    `mapstructure:"ramp"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load 从 YAML/TOML/JSON 文件、环境变量与命令行参数加载配置。
// 若 path 为空，则尝试从环境变量 SCRHAT_CONFIG 读取；否则查找 ./configs/scrhat.yaml。
// flags 中的 dev/baud 参数（若显式设置）覆盖文件与环境变量。
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("scrhat")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// 允许缺少配置文件，依赖默认值与环境变量
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// flagKeys 命令行参数名 -> 配置键
var flagKeys = map[string]string{
	"dev":  "serial.device",
	"baud": "serial.baud",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "scrhat")
	v.SetDefault("app.env", "dev")

	v.SetDefault("serial.transport", "uart")
	v.SetDefault("serial.device", "/dev/ttyS5")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.readTimeout", "0s")
	v.SetDefault("serial.i2cAddress", 0x47)

	v.SetDefault("device.checksum", "xor")
	v.SetDefault("device.baudPolicy", "strict")
	v.SetDefault("device.settle", "100ms")

	v.SetDefault("relay.backend", "cdev")
	v.SetDefault("relay.chip", "gpiochip0")
	v.SetDefault("relay.line", 259)
	v.SetDefault("relay.lineActiveLow", false)
	v.SetDefault("relay.deviceActiveLow", true)
	v.SetDefault("relay.abiVersion", 0)
	v.SetDefault("relay.period", "1s")
	v.SetDefault("relay.consumer", "scrhat-relay")

	v.SetDefault("ramp.tick", "100ms")

	v.SetDefault("http.enable", false)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.readTimeout", "5s")
	v.SetDefault("http.writeTimeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 20)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 7)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate 校验枚举与取值范围
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Serial.Transport) {
	case "uart":
		if c.Serial.Device == "" {
			errs = append(errs, errors.New("serial.device is empty"))
		}
		if c.Serial.Baud <= 0 {
			errs = append(errs, fmt.Errorf("serial.baud %d must be positive", c.Serial.Baud))
		}
	case "i2c":
		// 7位地址，排除保留段
		if c.Serial.I2CAddress < 0x08 || c.Serial.I2CAddress > 0x77 {
			errs = append(errs, fmt.Errorf("serial.i2cAddress 0x%02X out of range 0x08..0x77", c.Serial.I2CAddress))
		}
	default:
		errs = append(errs, fmt.Errorf("serial.transport %q: want uart or i2c", c.Serial.Transport))
	}
	if _, err := scr.ParseChecksumPolicy(c.Device.Checksum); err != nil {
		errs = append(errs, fmt.Errorf("device.checksum: %w", err))
	}
	if _, err := scr.ParseBaudPolicy(c.Device.BaudPolicy); err != nil {
		errs = append(errs, fmt.Errorf("device.baudPolicy: %w", err))
	}
	if c.Device.Settle < 0 {
		errs = append(errs, fmt.Errorf("device.settle %s must not be negative", c.Device.Settle))
	}

	switch strings.ToLower(c.Relay.Backend) {
	case "cdev", "rpio", "memory":
	default:
		errs = append(errs, fmt.Errorf("relay.backend %q: want cdev, rpio or memory", c.Relay.Backend))
	}
	if c.Relay.Line < 0 {
		errs = append(errs, fmt.Errorf("relay.line %d must not be negative", c.Relay.Line))
	}
	if c.Relay.ABIVersion != 0 && c.Relay.ABIVersion != 1 && c.Relay.ABIVersion != 2 {
		errs = append(errs, fmt.Errorf("relay.abiVersion %d: want 0, 1 or 2", c.Relay.ABIVersion))
	}
	if c.Relay.Period <= 0 {
		errs = append(errs, fmt.Errorf("relay.period %s must be positive", c.Relay.Period))
	}
	if c.Ramp.Tick <= 0 {
		errs = append(errs, fmt.Errorf("ramp.tick %s must be positive", c.Ramp.Tick))
	}
	if c.HTTP.Enable && c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is empty"))
	}

	return errors.Join(errs...)
}
