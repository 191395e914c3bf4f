package kv

import (
	"context"
	"sync"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
)

// MemoryBackend 进程内存储，适合测试与单实例开发环境.
type MemoryBackend struct {
	mu     sync.Mutex
	tables map[string]*MemoryStore
}

// NewMemoryBackend 创建内存后端.
func NewMemoryBackend(_ context.Context, _ *configs.StoreConfig) (Backend, error) {
	return &MemoryBackend{tables: make(map[string]*MemoryStore)}, nil
}

// Open 打开（或复用）逻辑表.
func (b *MemoryBackend) Open(_ context.Context, table Table) (Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.tables[table.Name]; ok {
		return s, nil
	}

	s := NewMemoryStore()
	b.tables[table.Name] = s

	return s, nil
}

// Ping 内存实现始终可用.
func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Close 内存实现无需操作.
func (b *MemoryBackend) Close() error { return nil }

// memoryEntry 以指针保存记录，使 CompareAndSwap 可比较.
type memoryEntry struct {
	rec model.Record
}

// MemoryStore 基于 sync.Map 的记录存储，读写均复制记录以避免别名.
type MemoryStore struct {
	data sync.Map // id -> *memoryEntry
}

// NewMemoryStore 创建空的内存表.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get 读取记录副本.
func (m *MemoryStore) Get(_ context.Context, id string) (model.Record, error) {
	v, ok := m.data.Load(id)
	if !ok {
		return nil, ErrNotFound
	}

	return v.(*memoryEntry).rec.Clone(), nil
}

// PutIfAbsent 使用 LoadOrStore 保证同一标识只写入一次.
func (m *MemoryStore) PutIfAbsent(_ context.Context, id string, rec model.Record) error {
	if _, loaded := m.data.LoadOrStore(id, &memoryEntry{rec: rec.Clone()}); loaded {
		return ErrConditionFailed
	}

	return nil
}

// Update 以 CompareAndSwap 实现读改写，并发更新按字段最后写入者生效.
func (m *MemoryStore) Update(_ context.Context, id string, changes []model.Change) (model.Record, error) {
	for {
		v, ok := m.data.Load(id)
		if !ok {
			return nil, ErrNotFound
		}

		old := v.(*memoryEntry)
		next := old.rec.Clone()
		next.Apply(changes)

		if m.data.CompareAndSwap(id, old, &memoryEntry{rec: next}) {
			return next.Clone(), nil
		}
	}
}

// Delete 删除键.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.data.Delete(id)
	return nil
}

// Scan 遍历记录副本.
func (m *MemoryStore) Scan(_ context.Context, fn func(id string, rec model.Record) bool) error {
	m.data.Range(func(key, value any) bool {
		return fn(key.(string), value.(*memoryEntry).rec.Clone())
	})

	return nil
}

// PurgeExpired 删除过期记录；仅当条目未被并发替换时才删除.
func (m *MemoryStore) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	n := 0

	m.data.Range(func(key, value any) bool {
		if value.(*memoryEntry).rec.Expired(now) && m.data.CompareAndDelete(key, value) {
			n++
		}

		return true
	})

	return n, nil
}

// Len 返回记录数量.
func (m *MemoryStore) Len() int {
	n := 0

	m.data.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

func init() {
	RegisterFactory(configs.StoreMemory, NewMemoryBackend)
}
