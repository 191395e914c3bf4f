package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// S3Type 对象存储签名实现.
type S3Type string

const (
	S3MinIO S3Type = "minio"
	S3AWS   S3Type = "aws"
)

// S3Config 对象存储配置，支持 MinIO 与 AWS S3.
type S3Config struct {
	Type            S3Type        `mapstructure:"type"              rule:"oneof=minio aws"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	AssetsBucket    string        `mapstructure:"assets_bucket"     rule:"required"`
	Region          string        `mapstructure:"region"            rule:"required"`
	PresignExpiry   time.Duration `mapstructure:"presign_expiry"    rule:"min=1s"`
}

const (
	DefaultS3Type            = S3MinIO           // 默认签名实现
	DefaultS3Endpoint        = "localhost:9000"  // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"      // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"      // 默认秘密访问密钥
	DefaultS3UseSSL          = false             // 默认是否使用SSL
	DefaultS3AssetsBucket    = "assetvault-data" // 默认资源存储桶名称
	DefaultS3Region          = "us-east-1"       // 默认区域
	DefaultS3PresignExpiry   = time.Hour         // 预签名 URL 有效期
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	if c.Endpoint == "" {
		return ""
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.type", DefaultS3Type)
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.assets_bucket", DefaultS3AssetsBucket)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.presign_expiry", DefaultS3PresignExpiry)
}
