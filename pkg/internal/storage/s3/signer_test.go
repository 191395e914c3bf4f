package s3_test

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/storage/s3"
)

func testConfig(t configs.S3Type) *configs.S3Config {
	return &configs.S3Config{
		Type:            t,
		Endpoint:        "localhost:9000",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		AssetsBucket:    "assets-bucket",
		Region:          "us-east-1",
		PresignExpiry:   time.Hour,
	}
}

func TestSigners(t *testing.T) {
	loc := s3.Location{Bucket: "assets-bucket", Key: "assets/a1/report.pdf"}

	for _, typ := range []configs.S3Type{configs.S3MinIO, configs.S3AWS} {
		t.Run(string(typ), func(t *testing.T) {
			signer, err := s3.New(context.Background(), testConfig(typ))
			if err != nil {
				t.Fatalf("new signer: %v", err)
			}

			up, err := signer.SignUpload(context.Background(), loc, "application/pdf")
			if err != nil {
				t.Fatalf("sign upload: %v", err)
			}

			checkSigned(t, up, loc)

			down, err := signer.SignDownload(context.Background(), loc)
			if err != nil {
				t.Fatalf("sign download: %v", err)
			}

			checkSigned(t, down, loc)
		})
	}
}

func checkSigned(t *testing.T, raw string, loc s3.Location) {
	t.Helper()

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}

	if u.Host != "localhost:9000" {
		t.Errorf("host = %q", u.Host)
	}

	if !strings.HasSuffix(u.Path, "/"+loc.Bucket+"/"+loc.Key) {
		t.Errorf("path = %q, want bucket/key", u.Path)
	}

	if got := u.Query().Get("X-Amz-Expires"); got != "3600" {
		t.Errorf("X-Amz-Expires = %q, want 3600", got)
	}

	if u.Query().Get("X-Amz-Signature") == "" {
		t.Error("missing signature")
	}
}

func TestDefaultExpiry(t *testing.T) {
	cfg := testConfig(configs.S3MinIO)
	cfg.PresignExpiry = 0

	signer, err := s3.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	loc := s3.Location{Bucket: "assets-bucket", Key: "assets/a1/report.pdf"}

	u, err := signer.SignDownload(context.Background(), loc)
	if err != nil {
		t.Fatalf("sign download: %v", err)
	}

	checkSigned(t, u, loc)
}

func TestUnknownType(t *testing.T) {
	if _, err := s3.New(context.Background(), &configs.S3Config{Type: "gcs"}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
