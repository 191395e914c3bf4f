// Package configs 管理应用程序配置，包括记录存储、对象存储、重试与事件的配置信息.
// configs 包支持多种配置格式（YAML、JSON、TOML、dotenv）并启用热重载.
//
// Example:
//
//	err := configs.InitConfig("./")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	config := configs.GetConfig()
//	fmt.Println(config.Server.Port)
//
// Example accessing Store config:
//
//	config := configs.GetConfig()
//	fmt.Println(config.Store.Type, config.Store.UsersTable)
//
// Example accessing S3 config:
//
//	config := configs.GetConfig()
//	endpoint := config.S3.GetEndpointURL()
//	fmt.Println("S3 Endpoint:", endpoint)
package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/assetvault/pkg/rule"
)

// AppVersion 当前构建版本，可通过 -ldflags 覆盖.
var AppVersion = "0.1.0"

// EnvPrefix 环境变量前缀.
const EnvPrefix = "ASSETVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 服务器配置，端口、超时等
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		Store          StoreConfig          `mapstructure:"store"`           // StoreConfig 记录存储配置
		S3             S3Config             `mapstructure:"s3"`              // S3Config 对象存储配置
		Retry          RetryConfig          `mapstructure:"retry"`           // RetryConfig 读取重试策略
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 领域事件发布
		Sweeper        SweeperConfig        `mapstructure:"sweeper"`         // SweeperConfig 过期记录清理
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 指标
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 链路追踪
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig 熔断
	}
)

var (
	// globalConfig 全局配置实例.
	globalConfig AppConfig
	// appViper 全局 Viper 实例.
	appViper *viper.Viper
)

// legacyEnvBindings 旧部署沿用的环境变量名.
var legacyEnvBindings = map[string]string{
	"store.users_table":  "USERS_TABLE_NAME",
	"store.assets_table": "ASSETS_TABLE_NAME",
	"s3.assets_bucket":   "ASSETS_BUCKET_NAME",
}

// InitConfig 加载应用程序配置，支持多种格式(yaml、json、toml、dotenv)并启用热重载.
// path 为空或不存在时仅使用默认值与环境变量.
func InitConfig(path string) error {
	v, err := load(path)
	if err != nil {
		return err
	}

	appViper = v

	reloadConfigs(appViper, globalConfig.Server.ReloadConfig)

	return nil
}

// load 构建 viper 实例并解析到 globalConfig.
func load(path string) (*viper.Viper, error) {
	v := viper.New()
	// 设置默认值
	setAllDefaults(v)

	hasFile := false

	// 检查path是否是文件
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		// 是文件，使用SetConfigFile，Viper会自动检测类型
		v.SetConfigFile(path)

		hasFile = true
	} else if path != "" {
		exts := []string{"yaml", "yml", "json", "toml", "env", "dotenv"}

		for _, dir := range []string{path, filepath.Join(path, "configs")} {
			for _, ext := range exts {
				cfg := filepath.Join(dir, "config."+ext)
				if _, err := os.Stat(cfg); err == nil {
					v.SetConfigFile(cfg)

					hasFile = true

					break
				}
			}

			if hasFile {
				break
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnvBindings {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	// 读取配置
	if hasFile {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AppConfig
	// 解析到全局配置
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg

	return v, nil
}

// Validate 使用 rule 标签校验配置.
func (c *AppConfig) Validate() error {
	if err := rule.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// setAllDefaults 设置所有配置的默认值.
func setAllDefaults(v *viper.Viper) {
	var (
		serverConfig   ServerConfig
		logConfig      LogConfig
		storeConfig    StoreConfig
		s3Config       S3Config
		retryConfig    RetryConfig
		eventsConfig   EventsConfig
		sweeperConfig  SweeperConfig
		metricsConfig  MetricsConfig
		tracingConfig  TracingConfig
		rateLimit      RateLimitConfig
		circuitBreaker CircuitBreakerConfig
	)

	serverConfig.setDefaults(v)
	logConfig.setDefaults(v)
	storeConfig.setDefaults(v)
	s3Config.setDefaults(v)
	retryConfig.setDefaults(v)
	eventsConfig.setDefaults(v)
	sweeperConfig.setDefaults(v)
	metricsConfig.setDefaults(v)
	tracingConfig.setDefaults(v)
	rateLimit.setDefaults(v)
	circuitBreaker.setDefaults(v)
}

func reloadConfigs(v *viper.Viper, isHotReload bool) {
	if !isHotReload || v.ConfigFileUsed() == "" {
		return
	}
	// 启用配置热重载
	v.OnConfigChange(func(e fsnotify.Event) {
		fmt.Println("Config file changed:", e.Name)
		fmt.Println("Reloading configuration...")

		var cfg AppConfig
		if err := v.Unmarshal(&cfg); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)

			return
		}

		if err := cfg.Validate(); err != nil {
			fmt.Printf("Error reloading config: %v\n", err)

			return
		}

		globalConfig = cfg
	})
	v.WatchConfig()
}

// GetConfig 返回全局配置实例.
func GetConfig() *AppConfig {
	return &globalConfig
}

// GetViper 返回全局 Viper 实例.
func GetViper() *viper.Viper {
	return appViper
}
