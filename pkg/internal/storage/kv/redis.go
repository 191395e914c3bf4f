//go:build !no_redis

package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

// redisUpdateAttempts WATCH 冲突时的最大重试次数.
const redisUpdateAttempts = 8

// RedisBackend 基于 Redis 的记录存储，键为 "{table}:{id}"，值为 JSON，
// 过期由 EXPIREAT 按记录的 ttl 字段交给 Redis 处理.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend 创建 Redis 后端.
func NewRedisBackend(ctx context.Context, cfg *configs.StoreConfig) (Backend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBackend{client: rdb}, nil
}

// NewRedisBackendFromClient 复用已有客户端，便于测试.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Open 打开逻辑表.
func (b *RedisBackend) Open(_ context.Context, table Table) (Store, error) {
	return &RedisStore{client: b.client, prefix: table.Name + ":"}, nil
}

// Ping 检查连接.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// RedisStore 单个逻辑表.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// expireAt 由 ttl 字段得到过期时间，没有 ttl 时返回零值.
func expireAt(rec model.Record) time.Time {
	if ttl, ok := rec.Int64(model.FieldTTL); ok && ttl > 0 {
		return time.Unix(ttl, 0)
	}

	return time.Time{}
}

// Get 获取记录.
func (r *RedisStore) Get(ctx context.Context, id string) (model.Record, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	return model.Decode(b)
}

// PutIfAbsent 使用 SET NX 与 EXAT 原子写入.
func (r *RedisStore) PutIfAbsent(ctx context.Context, id string, rec model.Record) error {
	b, err := model.Encode(rec)
	if err != nil {
		return err
	}

	err = r.client.SetArgs(ctx, r.key(id), b, redis.SetArgs{Mode: "NX", ExpireAt: expireAt(rec)}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrConditionFailed
	}

	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

// Update 在 WATCH 事务中读改写，键被并发修改时重试.
func (r *RedisStore) Update(ctx context.Context, id string, changes []model.Change) (model.Record, error) {
	key := r.key(id)

	var out model.Record

	txf := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}

		if err != nil {
			return err
		}

		rec, err := model.Decode(b)
		if err != nil {
			return err
		}

		rec.Apply(changes)

		nb, err := model.Encode(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if at := expireAt(rec); !at.IsZero() {
				pipe.SetArgs(ctx, key, nb, redis.SetArgs{ExpireAt: at})
			} else {
				pipe.SetArgs(ctx, key, nb, redis.SetArgs{KeepTTL: true})
			}

			return nil
		})
		if err == nil {
			out = rec
		}

		return err
	}

	for range redisUpdateAttempts {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}

		if err != nil {
			return nil, fmt.Errorf("failed to update key: %w", err)
		}

		return out, nil
	}

	return nil, fmt.Errorf("failed to update key %s: too many concurrent writers", key)
}

// Delete 删除键.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Scan 使用 SCAN 遍历表前缀下的键.
func (r *RedisStore) Scan(ctx context.Context, fn func(id string, rec model.Record) bool) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		b, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			return fmt.Errorf("failed to get key: %w", err)
		}

		rec, err := model.Decode(b)
		if err != nil {
			return err
		}

		if !fn(strings.TrimPrefix(key, r.prefix), rec) {
			return nil
		}
	}

	return iter.Err()
}

func init() {
	RegisterFactory(configs.StoreRedis, NewRedisBackend)
}
