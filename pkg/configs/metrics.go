package configs

import (
	"github.com/spf13/viper"
)

// MetricsConfig Metrics相关配置，指标挂载在主服务的 Path 上.
type MetricsConfig struct {
	Enabled        bool   `mapstructure:"enabled"`                                     // 是否启用Metrics
	Namespace      string `mapstructure:"namespace"       rule:"required"`             // 指标命名空间
	Path           string `mapstructure:"path"            rule:"required,startswith=/"` // 指标端点路径
	RuntimeMetrics bool   `mapstructure:"runtime_metrics"`                             // 是否收集运行时指标
	Pprof          bool   `mapstructure:"pprof"`                                       // 是否暴露 pprof 端点
	GORM           bool   `mapstructure:"gorm"`                                        // 是否启用 gorm prometheus 插件
}

// setDefaults 设置Metrics配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "assetvault")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.gorm", false)
}
