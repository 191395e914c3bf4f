package service

import (
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
)

// NewUsers 创建用户服务.
func NewUsers(store kv.Store, opts ...Option) *Records {
	return NewRecords(model.User, store, opts...)
}
