package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

// natsUpdateAttempts revision 冲突时的最大重试次数.
const natsUpdateAttempts = 8

var invalidBucketChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// NATSBackend 基于 NATS JetStream KV 的记录存储，每个逻辑表对应一个 bucket.
// NATS KV 没有按键过期，记录的 ttl 通过过期包装在读取时惰性判断.
type NATSBackend struct {
	js       nats.JetStreamContext
	conn     *nats.Conn
	replicas int
}

// NewNATSBackend 创建 NATS 后端.
func NewNATSBackend(_ context.Context, cfg *configs.StoreConfig) (Backend, error) {
	// 连接到 NATS
	opts := []nats.Option{nats.Name("assetvault-store")}
	if cfg.NATS.User != "" {
		opts = append(opts, nats.UserInfo(cfg.NATS.User, cfg.NATS.Password))
	}

	nc, err := nats.Connect(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// 创建 JetStream 上下文
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSBackend{js: js, conn: nc, replicas: max(cfg.NATS.Replicas, 1)}, nil
}

// Open 创建或获取表对应的 KV bucket.
func (b *NATSBackend) Open(_ context.Context, table Table) (Store, error) {
	bucket := invalidBucketChars.ReplaceAllString(table.Name, "_")

	kv, err := b.js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = b.js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   bucket,
			History:  1,
			Replicas: b.replicas,
		})
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create/get KV bucket %s: %w", bucket, err)
	}

	return &NATSStore{kv: kv}, nil
}

// Ping 检查连接状态.
func (b *NATSBackend) Ping(_ context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats connection status: %s", b.conn.Status())
	}

	return nil
}

// Close 关闭 NATS 连接.
func (b *NATSBackend) Close() error {
	b.conn.Close()
	return nil
}

// NATSStore 单个 bucket.
type NATSStore struct {
	kv  nats.KeyValue
	now func() time.Time
}

// natsKey 把任意标识编码为合法的 NATS 键.
func natsKey(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

func natsID(key string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("decode key %q: %w", key, err)
	}

	return string(b), nil
}

func (n *NATSStore) clock() time.Time {
	if n.now != nil {
		return n.now()
	}

	return time.Now()
}

func encodeNATS(rec model.Record) ([]byte, error) {
	b, err := model.Encode(rec)
	if err != nil {
		return nil, err
	}

	ttl, _ := rec.Int64(model.FieldTTL)

	return encodeWithExpiry(b, ttl)
}

// load 读取条目并解码，过期条目视为不存在.
func (n *NATSStore) load(key string) (model.Record, nats.KeyValueEntry, error) {
	entry, err := n.kv.Get(key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, nil, ErrNotFound
	}

	if err != nil {
		return nil, nil, fmt.Errorf("failed to get key: %w", err)
	}

	val, expired, err := decodeWithExpiry(entry.Value(), n.clock())
	if err != nil {
		return nil, entry, err
	}

	if expired {
		return nil, entry, ErrNotFound
	}

	rec, err := model.Decode(val)

	return rec, entry, err
}

// Get 获取记录，过期记录惰性删除.
func (n *NATSStore) Get(_ context.Context, id string) (model.Record, error) {
	key := natsKey(id)

	rec, entry, err := n.load(key)
	if errors.Is(err, ErrNotFound) && entry != nil {
		// lazy delete expired entry，仅当未被并发改写
		_ = n.kv.Delete(key, nats.LastRevision(entry.Revision()))
	}

	return rec, err
}

// PutIfAbsent 使用 KeyValue.Create；已存在但过期的条目按 revision 覆盖.
func (n *NATSStore) PutIfAbsent(_ context.Context, id string, rec model.Record) error {
	key := natsKey(id)

	b, err := encodeNATS(rec)
	if err != nil {
		return err
	}

	_, err = n.kv.Create(key, b)
	if err == nil {
		return nil
	}

	if !errors.Is(err, nats.ErrKeyExists) {
		return fmt.Errorf("failed to create key: %w", err)
	}

	_, entry, lerr := n.load(key)
	if !errors.Is(lerr, ErrNotFound) || entry == nil {
		return ErrConditionFailed
	}

	if _, err := n.kv.Update(key, b, entry.Revision()); err != nil {
		if errors.Is(err, nats.ErrKeyExists) {
			return ErrConditionFailed
		}

		return fmt.Errorf("failed to replace expired key: %w", err)
	}

	return nil
}

// Update 以 revision 做乐观并发控制的读改写.
func (n *NATSStore) Update(_ context.Context, id string, changes []model.Change) (model.Record, error) {
	key := natsKey(id)

	for range natsUpdateAttempts {
		rec, entry, err := n.load(key)
		if err != nil {
			return nil, err
		}

		rec.Apply(changes)

		b, err := encodeNATS(rec)
		if err != nil {
			return nil, err
		}

		_, err = n.kv.Update(key, b, entry.Revision())
		if errors.Is(err, nats.ErrKeyExists) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("failed to update key: %w", err)
		}

		return rec, nil
	}

	return nil, fmt.Errorf("failed to update key %s: too many concurrent writers", id)
}

// Delete 删除键.
func (n *NATSStore) Delete(_ context.Context, id string) error {
	if err := n.kv.Delete(natsKey(id)); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Scan 遍历未过期的记录.
func (n *NATSStore) Scan(_ context.Context, fn func(id string, rec model.Record) bool) error {
	keys, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to get keys: %w", err)
	}

	for _, key := range keys {
		rec, _, err := n.load(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		if err != nil {
			return err
		}

		id, err := natsID(key)
		if err != nil {
			return err
		}

		if !fn(id, rec) {
			return nil
		}
	}

	return nil
}

func init() {
	RegisterFactory(configs.StoreNATS, NewNATSBackend)
}
