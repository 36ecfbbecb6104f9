package isp

import "time"

const (
	DefaultRetries     = 3
	DefaultSettleDelay = 100 * time.Millisecond
)

// Config 编程器配置
type Config struct {
	// Logger 日志(可选)
	Logger Logger

	// ProgressCallback 每处理完一页调用一次(可选)
	ProgressCallback ProgressCallback

	// Retries 单字节操作的最大尝试次数
	Retries int

	// SkipDebug 会话开始时不发送进入调试模式命令
	SkipDebug bool

	// SkipNormal 会话结束时不发送进入正常模式命令
	SkipNormal bool

	// SettleDelay 切换模式后等待设备稳定的时间
	SettleDelay time.Duration

	// StrictHex 校验 HEX 文件每行的校验和
	StrictHex bool
}

func defaultConfig() Config {
	return Config{
		Logger:      nopLogger{},
		Retries:     DefaultRetries,
		SettleDelay: DefaultSettleDelay,
	}
}

func newConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

type Option func(*Config)

func WithLogger(logger Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithRetries 设置单字节操作的尝试次数，小于 1 时忽略
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.Retries = retries
		}
	}
}

func WithSkipDebug(skip bool) Option {
	return func(c *Config) {
		c.SkipDebug = skip
	}
}

func WithSkipNormal(skip bool) Option {
	return func(c *Config) {
		c.SkipNormal = skip
	}
}

func WithSettleDelay(delay time.Duration) Option {
	return func(c *Config) {
		if delay >= 0 {
			c.SettleDelay = delay
		}
	}
}

func WithStrictHex(strict bool) Option {
	return func(c *Config) {
		c.StrictHex = strict
	}
}
