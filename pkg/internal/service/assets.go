package service

import (
	"context"

	"github.com/yeisme/assetvault/pkg/internal/events"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	"github.com/yeisme/assetvault/pkg/internal/storage/s3"
)

// AssetCreateResult 资源创建结果，新建时附带上传 URL.
type AssetCreateResult struct {
	CreateResult
	UploadURL string
}

// DownloadInfo 下载信息.
type DownloadInfo struct {
	URL         string
	FileName    string
	ContentType any
}

// Assets 资源元数据与上传/下载 URL.
type Assets struct {
	*Records
	signer s3.Signer
}

// NewAssets 创建资源服务，env.AssetsBucket 决定新资源写入的桶.
func NewAssets(store kv.Store, signer s3.Signer, opts ...Option) *Assets {
	return &Assets{
		Records: NewRecords(model.Asset, store, opts...),
		signer:  signer,
	}
}

// Create 幂等创建资源元数据. 新建时签发 PUT URL；已存在时不签发.
func (a *Assets) Create(ctx context.Context, input map[string]any) (AssetCreateResult, error) {
	res, err := a.Records.Create(ctx, input)
	if err != nil || !res.Created {
		return AssetCreateResult{CreateResult: res}, err
	}

	loc := s3.Location{
		Bucket: res.Record.String(model.FieldS3Bucket),
		Key:    res.Record.String(model.FieldS3Key),
	}

	id := res.Record.String(model.Asset.IDField)

	url, err := a.signer.SignUpload(ctx, loc, res.Record.String(model.FieldContentType))
	if err != nil {
		a.logger(ctx, id).Error().Err(err).Msg("sign upload failed")
		return AssetCreateResult{}, storeErr("sign upload", err)
	}

	a.publish(ctx, events.TypeUploadIssued, id, res.Record)

	return AssetCreateResult{CreateResult: res, UploadURL: url}, nil
}

// Download 读取资源记录并按记录中的桶与键签发 GET URL.
func (a *Assets) Download(ctx context.Context, id string) (DownloadInfo, error) {
	rec, err := a.Get(ctx, id)
	if err != nil {
		return DownloadInfo{}, err
	}

	loc := s3.Location{
		Bucket: rec.String(model.FieldS3Bucket),
		Key:    rec.String(model.FieldS3Key),
	}

	url, err := a.signer.SignDownload(ctx, loc)
	if err != nil {
		a.logger(ctx, id).Error().Err(err).Msg("sign download failed")
		return DownloadInfo{}, storeErr("sign download", err)
	}

	return DownloadInfo{
		URL:         url,
		FileName:    rec.String(model.FieldFileName),
		ContentType: rec[model.FieldContentType],
	}, nil
}
