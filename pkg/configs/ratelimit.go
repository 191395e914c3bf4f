package configs

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/yeisme/assetvault/pkg/rule"
)

func init() {
	_ = rule.Engine().RegisterValidation("ratelimit_key", func(fl validator.FieldLevel) bool {
		key := strings.ToLower(fl.Field().String())
		return key == "global" || key == "ip" || (strings.HasPrefix(key, "header:") && len(key) > len("header:"))
	})
}

// RateLimitConfig 入口限流. 关闭时中间件直接放行.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"     rule:"gte=0"`
	Burst   int     `mapstructure:"burst"   rule:"gte=0"`
	// Key global、ip，或 header:X-Api-Key 按请求头分桶（缺失时回落到 IP）
	Key string `mapstructure:"key" rule:"omitempty,ratelimit_key"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("rate_limit.key", "ip")
}
