package storage

import (
	"context"
)

type contextKey string

const managerKey contextKey = "storageManager"

// WithManager 将 Manager 存储到 context 中.
func WithManager(ctx context.Context, mgr *Manager) context.Context {
	return context.WithValue(ctx, managerKey, mgr)
}

// FromContext 从 context 中获取 Manager，不存在时返回 ErrNoManager.
func FromContext(ctx context.Context) (*Manager, error) {
	if mgr, ok := ctx.Value(managerKey).(*Manager); ok && mgr != nil {
		return mgr, nil
	}

	return nil, ErrNoManager
}
