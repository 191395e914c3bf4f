package kv_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/db"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
)

var usersTable = kv.Table{Name: "test-users", IDField: "userId"}

// runStoreSuite 对任意 Store 实现执行同一组行为检查.
func runStoreSuite(t *testing.T, s kv.Store) {
	ctx := context.Background()
	id := fmt.Sprintf("u-%d", time.Now().UnixNano())
	future := time.Now().Add(time.Hour).Unix()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, id)
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("UpdateMissingDoesNotCreate", func(t *testing.T) {
		_, err := s.Update(ctx, id, []model.Change{{Field: "email", Value: "x@y.z"}})
		require.ErrorIs(t, err, kv.ErrNotFound)

		_, err = s.Get(ctx, id)
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("PutIfAbsent", func(t *testing.T) {
		rec := model.Record{"userId": id, "email": "a@b.com", "ttl": future}
		require.NoError(t, s.PutIfAbsent(ctx, id, rec))

		err := s.PutIfAbsent(ctx, id, model.Record{"userId": id, "email": "other@b.com", "ttl": future})
		require.ErrorIs(t, err, kv.ErrConditionFailed)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", got.String("email"))

		ttl, ok := got.Int64(model.FieldTTL)
		assert.True(t, ok)
		assert.Equal(t, future, ttl)
	})

	t.Run("Update", func(t *testing.T) {
		got, err := s.Update(ctx, id, []model.Change{
			{Field: "department", Value: "eng"},
			{Field: model.FieldUpdatedAt, Value: int64(42)},
		})
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", got.String("email"))
		assert.Equal(t, "eng", got.String("department"))

		updated, _ := got.Int64(model.FieldUpdatedAt)
		assert.Equal(t, int64(42), updated)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, id))
		require.NoError(t, s.Delete(ctx, id), "second delete must succeed")

		_, err := s.Get(ctx, id)
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("ConcurrentPutIfAbsent", func(t *testing.T) {
		raceID := id + "-race"

		var (
			wg      sync.WaitGroup
			winners atomic.Int32
		)

		for i := range 8 {
			wg.Add(1)

			go func(i int) {
				defer wg.Done()

				err := s.PutIfAbsent(ctx, raceID, model.Record{"userId": raceID, "n": int64(i), "ttl": future})
				if err == nil {
					winners.Add(1)
					return
				}

				if !errors.Is(err, kv.ErrConditionFailed) {
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}

		wg.Wait()
		assert.Equal(t, int32(1), winners.Load())
		_ = s.Delete(ctx, raceID)
	})
}

func TestMemoryStore(t *testing.T) {
	backend, err := kv.NewBackend(context.Background(), &configs.StoreConfig{Type: configs.StoreMemory})
	require.NoError(t, err)

	s, err := backend.Open(context.Background(), usersTable)
	require.NoError(t, err)

	runStoreSuite(t, s)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryStore()

	rec := model.Record{"userId": "u1", "email": "a@b.com"}
	require.NoError(t, s.PutIfAbsent(ctx, "u1", rec))

	rec["email"] = "mutated"

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.String("email"))

	got["email"] = "mutated again"

	again, _ := s.Get(ctx, "u1")
	assert.Equal(t, "a@b.com", again.String("email"))
}

func TestMemoryPurgeExpired(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryStore()
	now := time.Unix(1700000000, 0)

	require.NoError(t, s.PutIfAbsent(ctx, "old", model.Record{"ttl": now.Unix() - 1}))
	require.NoError(t, s.PutIfAbsent(ctx, "new", model.Record{"ttl": now.Unix() + 60}))
	require.NoError(t, s.PutIfAbsent(ctx, "forever", model.Record{}))

	n, err := s.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemoryStore()
	require.NoError(t, s.PutIfAbsent(ctx, "u1", model.Record{"userId": "u1"}))

	var wg sync.WaitGroup

	for i := range 16 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, err := s.Update(ctx, "u1", []model.Change{{Field: fmt.Sprintf("f%d", i), Value: int64(i)}})
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	got, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 17, "every field written by a concurrent update survives")
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()

	client, err := db.Open(ctx, &configs.DBConfig{
		Type:         configs.SQLite,
		Database:     filepath.Join(t.TempDir(), "records"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	backend, err := kv.NewSQLBackendFromClient(ctx, client)
	require.NoError(t, err)

	users, err := backend.Open(ctx, usersTable)
	require.NoError(t, err)

	runStoreSuite(t, users)

	t.Run("TablesAreSeparate", func(t *testing.T) {
		assets, err := backend.Open(ctx, kv.Table{Name: "test-assets", IDField: "assetId"})
		require.NoError(t, err)

		require.NoError(t, users.PutIfAbsent(ctx, "same", model.Record{"userId": "same"}))
		require.NoError(t, assets.PutIfAbsent(ctx, "same", model.Record{"assetId": "same"}))

		got, err := assets.Get(ctx, "same")
		require.NoError(t, err)
		assert.Equal(t, "same", got.String("assetId"))
	})

	t.Run("PurgeExpired", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, users.PutIfAbsent(ctx, "stale", model.Record{"userId": "stale", "ttl": now.Unix() - 10}))

		n, err := users.(kv.Purger).PurgeExpired(ctx, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		_, err = users.Get(ctx, "stale")
		require.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("Scan", func(t *testing.T) {
		seen := 0
		err := users.(kv.Scanner).Scan(ctx, func(_ string, _ model.Record) bool {
			seen++
			return true
		})
		require.NoError(t, err)
		assert.Positive(t, seen)
	})
}

// 需要本地 Redis：ENABLE_REDIS_TEST=1，REDIS_ADDR 默认 127.0.0.1:6379.
func TestRedisStore(t *testing.T) {
	if os.Getenv("ENABLE_REDIS_TEST") == "" {
		t.Skip("set ENABLE_REDIS_TEST=1 to enable")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	backend, err := kv.NewBackend(context.Background(), &configs.StoreConfig{
		Type:  configs.StoreRedis,
		Redis: configs.RedisStoreConfig{Addr: addr},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	s, err := backend.Open(context.Background(), usersTable)
	require.NoError(t, err)

	runStoreSuite(t, s)
}

// 需要开启 JetStream 的 NATS：ENABLE_NATS_TEST=1，NATS_URL 默认 nats://127.0.0.1:4222.
func TestNATSStore(t *testing.T) {
	if os.Getenv("ENABLE_NATS_TEST") == "" {
		t.Skip("set ENABLE_NATS_TEST=1 to enable")
	}

	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://127.0.0.1:4222"
	}

	backend, err := kv.NewBackend(context.Background(), &configs.StoreConfig{
		Type: configs.StoreNATS,
		NATS: configs.NATSStoreConfig{URL: url, Replicas: 1},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	s, err := backend.Open(context.Background(), usersTable)
	require.NoError(t, err)

	runStoreSuite(t, s)
}

func TestRegisteredTypes(t *testing.T) {
	types := kv.RegisteredTypes()
	assert.Contains(t, types, configs.StoreMemory)
	assert.Contains(t, types, configs.StoreSQL)
	assert.Contains(t, types, configs.StoreDynamoDB)

	_, err := kv.NewBackend(context.Background(), &configs.StoreConfig{Type: "etcd"})
	assert.Error(t, err)
}
