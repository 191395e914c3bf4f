package configs

import (
	"github.com/spf13/viper"
)

// StoreType 记录存储后端类型.
type StoreType string

const (
	StoreMemory   StoreType = "memory"
	StoreRedis    StoreType = "redis"
	StoreNATS     StoreType = "nats"
	StoreSQL      StoreType = "sql"
	StoreDynamoDB StoreType = "dynamodb"
)

const (
	DefaultStoreType   = StoreMemory         // 默认记录存储
	DefaultUsersTable  = "assetvault-users"  // 默认用户表
	DefaultAssetsTable = "assetvault-assets" // 默认资源表
)

// StoreConfig 记录存储配置，users_table 与 assets_table 在不同后端中分别映射为
// 表名、键前缀或 KV bucket 名.
type StoreConfig struct {
	Type        StoreType           `mapstructure:"type"         rule:"oneof=memory redis nats sql dynamodb"`
	UsersTable  string              `mapstructure:"users_table"  rule:"required,max=255"`
	AssetsTable string              `mapstructure:"assets_table" rule:"required,max=255"`
	Redis       RedisStoreConfig    `mapstructure:"redis"`
	NATS        NATSStoreConfig     `mapstructure:"nats"`
	SQL         DBConfig            `mapstructure:"sql"`
	DynamoDB    DynamoDBStoreConfig `mapstructure:"dynamodb"`
}

// RedisStoreConfig Redis 记录存储配置.
type RedisStoreConfig struct {
	Addr     string `mapstructure:"addr"     rule:"hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       rule:"min=0,max=15"`
}

// NATSStoreConfig NATS JetStream KV 记录存储配置.
type NATSStoreConfig struct {
	URL      string `mapstructure:"url"      rule:"required"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Replicas int    `mapstructure:"replicas" rule:"min=1,max=5"`
}

// DynamoDBStoreConfig DynamoDB 记录存储配置.
// Endpoint 为空时使用 AWS 默认端点，AccessKeyID 为空时使用默认凭证链.
type DynamoDBStoreConfig struct {
	Region          string `mapstructure:"region"            rule:"required"`
	Endpoint        string `mapstructure:"endpoint"          rule:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// TableFor 返回资源类型对应的表名.
func (c *StoreConfig) TableFor(kind string) string {
	if kind == "asset" {
		return c.AssetsTable
	}

	return c.UsersTable
}

// setDefaults 设置记录存储配置的默认值.
func (c *StoreConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("store.type", DefaultStoreType)
	v.SetDefault("store.users_table", DefaultUsersTable)
	v.SetDefault("store.assets_table", DefaultAssetsTable)

	// Redis 默认值
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	// NATS 默认值
	v.SetDefault("store.nats.url", "localhost:4222")
	v.SetDefault("store.nats.user", "")
	v.SetDefault("store.nats.password", "")
	v.SetDefault("store.nats.replicas", 1)

	// DynamoDB 默认值
	v.SetDefault("store.dynamodb.region", DefaultS3Region)
	v.SetDefault("store.dynamodb.endpoint", "")
	v.SetDefault("store.dynamodb.access_key_id", "")
	v.SetDefault("store.dynamodb.secret_access_key", "")

	c.SQL.setDefaults(v)
}
