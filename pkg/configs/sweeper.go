package configs

import (
	"time"

	"github.com/spf13/viper"
)

// SweeperConfig 过期记录清理任务，仅对没有原生过期能力的存储（memory、sql）生效.
type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" rule:"min=1s"`
}

func (c *SweeperConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", 10*time.Minute)
}
