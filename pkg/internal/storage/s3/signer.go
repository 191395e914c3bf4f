// Package s3 签发对象存储的限时上传/下载 URL，支持 MinIO 与 AWS S3 两种实现.
//
// 签名不访问网络，只依赖配置中的凭证与区域：
//
//	signer, err := s3.New(ctx, &configs.GetConfig().S3)
//	url, err := signer.SignUpload(ctx, s3.Location{Bucket: "b", Key: "assets/a1/f.txt"}, "text/plain")
package s3

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
)

// Location 对象位置.
type Location struct {
	Bucket string
	Key    string
}

// Signer 限时 URL 签发器，无状态.
type Signer interface {
	// SignUpload 签发 PUT 上传 URL，contentType 参与签名.
	SignUpload(ctx context.Context, loc Location, contentType string) (string, error)
	// SignDownload 签发 GET 下载 URL.
	SignDownload(ctx context.Context, loc Location) (string, error)
	// HealthCheck 检查对象存储可达且资源桶存在.
	HealthCheck(ctx context.Context) error
}

// Factory 创建 Signer.
type Factory func(ctx context.Context, cfg *configs.S3Config) (Signer, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[configs.S3Type]Factory)
)

// RegisterFactory 注册签名实现.
func RegisterFactory(t configs.S3Type, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[t] = f
}

// New 按 cfg.Type 创建 Signer.
func New(ctx context.Context, cfg *configs.S3Config) (Signer, error) {
	factoriesMu.RLock()
	f, ok := factories[cfg.Type]
	factoriesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unsupported s3 type: %s", cfg.Type)
	}

	return f(ctx, cfg)
}

// expiry 返回签名有效期，未配置时为默认 1 小时.
func expiry(cfg *configs.S3Config) time.Duration {
	if cfg.PresignExpiry <= 0 {
		return configs.DefaultS3PresignExpiry
	}

	return cfg.PresignExpiry
}
