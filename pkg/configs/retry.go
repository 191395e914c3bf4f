package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRetryMaxRetries   = 3                      // 总尝试次数（含首次）
	DefaultRetryInitialDelay = 100 * time.Millisecond // 首次重试前的等待时间
)

// RetryConfig 读取操作的重试策略，第 a 次失败后等待 initial_delay * 2^a.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"   rule:"min=1,max=10"`
	InitialDelay time.Duration `mapstructure:"initial_delay" rule:"min=1ms"`
}

func (c *RetryConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("retry.max_retries", DefaultRetryMaxRetries)
	v.SetDefault("retry.initial_delay", DefaultRetryInitialDelay)
}
