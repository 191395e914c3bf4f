// Package kv 提供记录存储接口及其多种后端实现（memory、redis、nats、sql、dynamodb）.
//
// 每个后端通过 RegisterFactory 在 init 中注册，按配置的 store.type 选择：
//
//	backend, err := kv.NewBackend(ctx, &configs.GetConfig().Store)
//	if err != nil {
//		return err
//	}
//	users, err := backend.Open(ctx, kv.Table{Name: "users", IDField: "userId"})
package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

var (
	// ErrNotFound 记录不存在.
	ErrNotFound = errors.New("kv: record not found")
	// ErrConditionFailed 条件写入被拒绝（标识已存在）.
	ErrConditionFailed = errors.New("kv: conditional check failed")
)

// Store 单个逻辑表上的记录存储.
type Store interface {
	// Get 按标识读取，不存在时返回 ErrNotFound.
	Get(ctx context.Context, id string) (model.Record, error)
	// PutIfAbsent 仅在标识不存在时写入，否则返回 ErrConditionFailed.
	PutIfAbsent(ctx context.Context, id string, rec model.Record) error
	// Update 覆盖 changes 中的字段并返回更新后的完整记录，不存在时返回 ErrNotFound 且不写入.
	Update(ctx context.Context, id string, changes []model.Change) (model.Record, error)
	// Delete 无条件删除，标识不存在时同样成功.
	Delete(ctx context.Context, id string) error
}

// Scanner 可选能力：遍历表中记录，fn 返回 false 时停止.
type Scanner interface {
	Scan(ctx context.Context, fn func(id string, rec model.Record) bool) error
}

// Purger 可选能力：删除 ttl 早于 now 的记录，返回删除数量.
// 只有没有原生过期机制的后端实现它.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Table 逻辑表.
type Table struct {
	Name    string
	IDField string
}

// Backend 一个存储连接，可打开多个逻辑表.
type Backend interface {
	Open(ctx context.Context, table Table) (Store, error)
	Ping(ctx context.Context) error
	Close() error
}

// Factory 定义创建 Backend 的工厂函数类型.
type Factory func(ctx context.Context, cfg *configs.StoreConfig) (Backend, error)

var (
	factoriesMu sync.RWMutex
	// factories 存储类型到工厂的映射.
	factories = make(map[configs.StoreType]Factory)
)

// RegisterFactory 注册存储工厂函数.
func RegisterFactory(t configs.StoreType, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	factories[t] = factory
}

// RegisteredTypes 返回已注册的存储类型列表（已排序）.
func RegisteredTypes() []configs.StoreType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]configs.StoreType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	slices.Sort(types)

	return types
}

// NewBackend 根据 cfg.Type 创建 Backend.
func NewBackend(ctx context.Context, cfg *configs.StoreConfig) (Backend, error) {
	factoriesMu.RLock()
	factory, exists := factories[cfg.Type]
	factoriesMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}

	return factory(ctx, cfg)
}
