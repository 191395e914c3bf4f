// Package storage 聚合记录存储与对象存储签名器，进程启动时构建一次后注入服务.
//
// Example:
//
// 初始化
//
//	mgr, err := storage.Init(ctx, configs.GetConfig())
//	if err != nil {
//	    // 处理错误
//	}
//	defer mgr.Close()
//
// 获取存储
//
//	users := mgr.Users
//	signer := mgr.Signer
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	s3c "github.com/yeisme/assetvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/assetvault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	Backend kv.Backend
	Users   kv.Store
	Assets  kv.Store
	Signer  s3c.Signer
	// Tables 逻辑表名，与 Users/Assets 一一对应
	Tables map[string]string
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用给定配置. 重复调用只返回已初始化实例.
func Init(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	mgrOnce.Do(func() {
		mgr, mgrErr = New(ctx, cfg)
		if mgrErr == nil {
			nlog.Logger().Info().
				Str("store", string(cfg.Store.Type)).
				Str("s3", string(cfg.S3.Type)).
				Msg("storage manager initialized")
		}
	})

	return mgr, mgrErr
}

// New 构建一个新的 Manager，不影响全局实例.
func New(ctx context.Context, cfg *configs.AppConfig) (*Manager, error) {
	backend, err := kv.NewBackend(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	signer, err := s3c.New(ctx, &cfg.S3)
	if err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("create s3 signer: %w", err)
	}

	return NewWithBackend(ctx, backend, signer, cfg.Store.UsersTable, cfg.Store.AssetsTable)
}

// NewWithBackend 使用已有后端与签名器打开用户表和资源表.
func NewWithBackend(ctx context.Context, backend kv.Backend, signer s3c.Signer, usersTable, assetsTable string) (*Manager, error) {
	users, err := backend.Open(ctx, kv.Table{Name: usersTable, IDField: model.User.IDField})
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", usersTable, err)
	}

	assets, err := backend.Open(ctx, kv.Table{Name: assetsTable, IDField: model.Asset.IDField})
	if err != nil {
		return nil, fmt.Errorf("open table %s: %w", assetsTable, err)
	}

	return &Manager{
		Backend: backend,
		Users:   users,
		Assets:  assets,
		Signer:  signer,
		Tables: map[string]string{
			model.User.Name:  usersTable,
			model.Asset.Name: assetsTable,
		},
	}, nil
}

// Store 返回记录类型对应的存储.
func (m *Manager) Store(kind string) kv.Store {
	if kind == model.Asset.Name {
		return m.Assets
	}

	return m.Users
}

// Ping 检查记录存储.
func (m *Manager) Ping(ctx context.Context) error {
	return m.Backend.Ping(ctx)
}

// Close 关闭记录存储连接.
func (m *Manager) Close() error {
	if m == nil || m.Backend == nil {
		return nil
	}

	return m.Backend.Close()
}

// ErrNoManager context 中没有 Manager.
var ErrNoManager = errors.New("storage manager not initialized")
