package s3

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yeisme/assetvault/pkg/configs"
)

// AWSSigner 基于 aws-sdk-go-v2 PresignClient 的签名实现，也可指向兼容 S3 的端点.
type AWSSigner struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewAWSSigner 加载 AWS 配置；AccessKeyID 为空时使用默认凭证链.
func NewAWSSigner(ctx context.Context, cfg *configs.S3Config) (Signer, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := cfg.GetEndpointURL()
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &AWSSigner{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  cfg.AssetsBucket,
		expiry:  expiry(cfg),
	}, nil
}

// SignUpload 签发 PUT URL.
func (a *AWSSigner) SignUpload(ctx context.Context, loc Location, contentType string) (string, error) {
	in := &awss3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := a.presign.PresignPutObject(ctx, in, awss3.WithPresignExpires(a.expiry))
	if err != nil {
		return "", fmt.Errorf("presign upload %s/%s: %w", loc.Bucket, loc.Key, err)
	}

	return req.URL, nil
}

// SignDownload 签发 GET URL.
func (a *AWSSigner) SignDownload(ctx context.Context, loc Location) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}, awss3.WithPresignExpires(a.expiry))
	if err != nil {
		return "", fmt.Errorf("presign download %s/%s: %w", loc.Bucket, loc.Key, err)
	}

	return req.URL, nil
}

// HealthCheck 对资源桶执行 HeadBucket.
func (a *AWSSigner) HealthCheck(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &awss3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return err
}

func init() {
	RegisterFactory(configs.S3AWS, NewAWSSigner)
}
