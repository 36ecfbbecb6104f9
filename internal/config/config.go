// Package config 读取命令行使用的 YAML 配置文件
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	isp "github.com/tocurd/xfr-isp"
)

// File 配置文件内容，时间字段使用 time.ParseDuration 的格式，如 "500ms"
type File struct {
	Port             string `yaml:"port"`
	Baud             int    `yaml:"baud"`
	ReadTimeout      string `yaml:"read_timeout"`
	SettleDelay      string `yaml:"settle_delay"`
	Retries          *int   `yaml:"retries"`
	SkipDebug        bool   `yaml:"skip_debug"`
	SkipNormal       bool   `yaml:"skip_normal"`
	StrictHex        bool   `yaml:"strict_hex"`
	DiscardFirstLine bool   `yaml:"discard_first_line"`
	Verbose          bool   `yaml:"verbose"`
}

// Config 解析后的配置
type Config struct {
	Port             string
	Baud             int
	ReadTimeout      time.Duration
	SettleDelay      time.Duration
	Retries          int
	SkipDebug        bool
	SkipNormal       bool
	StrictHex        bool
	DiscardFirstLine bool
	Verbose          bool
}

func Default() Config {
	return Config{
		Port:        "/dev/ttyUSB0",
		Baud:        isp.DefaultBaudRate,
		SettleDelay: isp.DefaultSettleDelay,
		Retries:     isp.DefaultRetries,
	}
}

/*
 * @Description: 读取配置文件，未出现的字段保留默认值
 * @param path
 * @return Config
 * @return error
 */
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}

	cfg := Default()
	if f.Port != "" {
		cfg.Port = f.Port
	}
	if f.Baud != 0 {
		cfg.Baud = f.Baud
	}
	if f.Retries != nil {
		cfg.Retries = *f.Retries
	}
	var err error
	if f.ReadTimeout != "" {
		if cfg.ReadTimeout, err = time.ParseDuration(f.ReadTimeout); err != nil {
			return Config{}, errors.Wrap(err, "read_timeout")
		}
	}
	if f.SettleDelay != "" {
		if cfg.SettleDelay, err = time.ParseDuration(f.SettleDelay); err != nil {
			return Config{}, errors.Wrap(err, "settle_delay")
		}
	}
	cfg.SkipDebug = f.SkipDebug
	cfg.SkipNormal = f.SkipNormal
	cfg.StrictHex = f.StrictHex
	cfg.DiscardFirstLine = f.DiscardFirstLine
	cfg.Verbose = f.Verbose
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 拒绝不会生效的取值，不静默替换为默认值
func (c Config) Validate() error {
	if c.Retries < 1 {
		return errors.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	if c.Baud <= 0 {
		return errors.Errorf("invalid baud rate %d", c.Baud)
	}
	if c.ReadTimeout < 0 {
		return errors.Errorf("negative read timeout %v", c.ReadTimeout)
	}
	if c.SettleDelay < 0 {
		return errors.Errorf("negative settle delay %v", c.SettleDelay)
	}
	return nil
}

// Options 转换为 isp 选项
func (c Config) Options() []isp.Option {
	return []isp.Option{
		isp.WithRetries(c.Retries),
		isp.WithSettleDelay(c.SettleDelay),
		isp.WithSkipDebug(c.SkipDebug),
		isp.WithSkipNormal(c.SkipNormal),
		isp.WithStrictHex(c.StrictHex),
	}
}

func (c Config) PortConfig() isp.PortConfig {
	return isp.PortConfig{
		Name:             c.Port,
		BaudRate:         c.Baud,
		ReadTimeout:      c.ReadTimeout,
		DiscardFirstLine: c.DiscardFirstLine,
	}
}
