package configs

import "github.com/spf13/viper"

// CircuitBreakerConfig 以 5xx 比例判断记录存储是否故障.
type CircuitBreakerConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	FailureRate       float64 `mapstructure:"failure_rate"         rule:"gte=0,lte=1"`
	MinRequests       uint32  `mapstructure:"min_requests"`         // 窗口内请求数达到该值后才判断
	IntervalSeconds   int     `mapstructure:"interval_seconds"     rule:"gte=0"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"      rule:"gte=1"` // 打开后多久进入半开
	MaxRequestsInHalf uint32  `mapstructure:"max_requests_in_half" rule:"gte=1"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_rate", 0.5)
	v.SetDefault("circuit_breaker.min_requests", 20)
	v.SetDefault("circuit_breaker.interval_seconds", 60)
	v.SetDefault("circuit_breaker.timeout_seconds", 30)
	v.SetDefault("circuit_breaker.max_requests_in_half", 5)
}
