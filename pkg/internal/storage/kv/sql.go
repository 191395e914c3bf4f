package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/db"
)

// sqlScanBatch Scan 每批读取的行数.
const sqlScanBatch = 200

// SQLBackend 基于 GORM 的记录存储，所有逻辑表共用 assetvault_records 表.
type SQLBackend struct {
	client *db.Client
}

// NewSQLBackend 按 store.sql 配置打开数据库并确保记录表存在.
func NewSQLBackend(ctx context.Context, cfg *configs.StoreConfig) (Backend, error) {
	client, err := db.Open(ctx, &cfg.SQL, db.Options{Metrics: configs.GetConfig().Metrics.GORM})
	if err != nil {
		return nil, err
	}

	return NewSQLBackendFromClient(ctx, client)
}

// NewSQLBackendFromClient 复用已有连接，便于测试.
func NewSQLBackendFromClient(ctx context.Context, client *db.Client) (*SQLBackend, error) {
	if err := client.WithContext(ctx).AutoMigrate(&model.RecordRow{}); err != nil {
		return nil, fmt.Errorf("failed to create records table: %w", err)
	}

	return &SQLBackend{client: client}, nil
}

// Open 打开逻辑表.
func (b *SQLBackend) Open(_ context.Context, table Table) (Store, error) {
	return &SQLStore{db: b.client.DB, bucket: table.Name}, nil
}

// Ping 检查数据库连接.
func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// Close 关闭连接池.
func (b *SQLBackend) Close() error {
	return b.client.Close()
}

// SQLStore 单个逻辑表.
type SQLStore struct {
	db     *gorm.DB
	bucket string
}

func (s *SQLStore) scope(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.RecordRow{}).Where("bucket = ?", s.bucket)
}

func toRow(bucket, id string, rec model.Record) (*model.RecordRow, error) {
	b, err := model.Encode(rec)
	if err != nil {
		return nil, err
	}

	ttl, _ := rec.Int64(model.FieldTTL)

	return &model.RecordRow{Bucket: bucket, ID: id, Data: string(b), TTL: ttl}, nil
}

// Get 获取记录.
func (s *SQLStore) Get(ctx context.Context, id string) (model.Record, error) {
	var row model.RecordRow

	err := s.scope(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return model.Decode([]byte(row.Data))
}

// PutIfAbsent 使用 ON CONFLICT DO NOTHING，影响行数为 0 表示主键已存在.
func (s *SQLStore) PutIfAbsent(ctx context.Context, id string, rec model.Record) error {
	row, err := toRow(s.bucket, id, rec)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return fmt.Errorf("failed to insert record: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return ErrConditionFailed
	}

	return nil
}

// Update 在事务中读改写；非 sqlite 方言加行锁.
func (s *SQLStore) Update(ctx context.Context, id string, changes []model.Change) (model.Record, error) {
	var out model.Record

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.RecordRow{}).Where("bucket = ? AND id = ?", s.bucket, id)
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row model.RecordRow
		if err := q.Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}

			return err
		}

		rec, err := model.Decode([]byte(row.Data))
		if err != nil {
			return err
		}

		rec.Apply(changes)

		next, err := toRow(s.bucket, id, rec)
		if err != nil {
			return err
		}

		res := tx.Model(&model.RecordRow{}).
			Where("bucket = ? AND id = ?", s.bucket, id).
			Updates(map[string]any{"data": next.Data, "ttl": next.TTL, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		out = rec

		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to update record: %w", err)
	}

	return out, nil
}

// Delete 删除记录.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Where("bucket = ? AND id = ?", s.bucket, id).
		Delete(&model.RecordRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}

// Scan 分批遍历记录.
func (s *SQLStore) Scan(ctx context.Context, fn func(id string, rec model.Record) bool) error {
	var (
		rows    []model.RecordRow
		stopped bool
		decErr  error
	)

	res := s.scope(ctx).FindInBatches(&rows, sqlScanBatch, func(_ *gorm.DB, _ int) error {
		for _, row := range rows {
			rec, err := model.Decode([]byte(row.Data))
			if err != nil {
				decErr = err
				return err
			}

			if !fn(row.ID, rec) {
				stopped = true
				return errStopScan
			}
		}

		return nil
	})

	if stopped {
		return nil
	}

	if decErr != nil {
		return decErr
	}

	return res.Error
}

var errStopScan = errors.New("stop scan")

// PurgeExpired 删除 ttl 已过的记录.
func (s *SQLStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res := s.db.WithContext(ctx).
		Where("bucket = ? AND ttl > 0 AND ttl <= ?", s.bucket, now.Unix()).
		Delete(&model.RecordRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge expired records: %w", res.Error)
	}

	return int(res.RowsAffected), nil
}

func init() {
	RegisterFactory(configs.StoreSQL, NewSQLBackend)
}
