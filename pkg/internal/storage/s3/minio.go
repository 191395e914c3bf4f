package s3

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/assetvault/pkg/configs"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// MinIOSigner 基于 minio-go 的签名实现.
type MinIOSigner struct {
	cli    *minio.Client
	bucket string
	expiry time.Duration
}

// NewMinIOSigner 创建 MinIO 客户端. 显式设置 Region，避免签名时查询 bucket 位置.
func NewMinIOSigner(_ context.Context, cfg *configs.S3Config) (Signer, error) {
	endpoint := cfg.Endpoint
	secure := cfg.UseSSL
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			secure = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("assetvault", configs.AppVersion)

	nlog.Logger().Debug().Str("endpoint", endpoint).Str("bucket", cfg.AssetsBucket).Msg("minio signer ready")

	return &MinIOSigner{cli: cli, bucket: cfg.AssetsBucket, expiry: expiry(cfg)}, nil
}

// SignUpload 使用 PresignHeader 把 Content-Type 纳入签名.
func (m *MinIOSigner) SignUpload(ctx context.Context, loc Location, contentType string) (string, error) {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}

	u, err := m.cli.PresignHeader(ctx, http.MethodPut, loc.Bucket, loc.Key, m.expiry, url.Values{}, h)
	if err != nil {
		return "", fmt.Errorf("presign upload %s/%s: %w", loc.Bucket, loc.Key, err)
	}

	return u.String(), nil
}

// SignDownload 签发 GET URL.
func (m *MinIOSigner) SignDownload(ctx context.Context, loc Location) (string, error) {
	u, err := m.cli.PresignedGetObject(ctx, loc.Bucket, loc.Key, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign download %s/%s: %w", loc.Bucket, loc.Key, err)
	}

	return u.String(), nil
}

// HealthCheck 检查资源桶是否存在.
func (m *MinIOSigner) HealthCheck(ctx context.Context) error {
	exists, err := m.cli.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}

	if !exists {
		return fmt.Errorf("bucket %s does not exist", m.bucket)
	}

	return nil
}

func init() {
	RegisterFactory(configs.S3MinIO, NewMinIOSigner)
}
