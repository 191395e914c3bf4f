package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
)

var fixedNow = time.Unix(1700000000, 0)

func clock() time.Time { return fixedNow }

func newUsers(store kv.Store, sleep *recordingSleep) *service.Records {
	return service.NewUsers(store, service.WithClock(clock), service.WithRetry(sleep.policy()))
}

func TestCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	users := newUsers(store, &recordingSleep{})

	input := map[string]any{"userId": "u1", "email": "a@b.com", "name": "Ann"}

	first, err := users.Create(ctx, input)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "Ann", first.Record.String("name"))

	ttl, _ := first.Record.Int64(model.FieldTTL)
	assert.Equal(t, fixedNow.Unix()+7776000, ttl)

	second, err := users.Create(ctx, input)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Record, second.Record)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, int32(1), store.puts.Load(), "the second create must not write")
}

func TestCreateConcurrentRace(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	users := newUsers(store, &recordingSleep{})

	const callers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		records []model.Record
	)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			res, err := users.Create(ctx, map[string]any{"userId": "race", "email": "r@b.com"})
			if !assert.NoError(t, err) {
				return
			}

			mu.Lock()
			defer mu.Unlock()

			if res.Created {
				created++
			}

			records = append(records, res.Record)
		}()
	}

	wg.Wait()

	assert.Equal(t, 1, created)
	require.Len(t, records, callers)

	for _, rec := range records {
		assert.Equal(t, records[0], rec)
	}
}

func TestCreateLostRaceReturnsWinner(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	winner := model.Record{"userId": "u1", "email": "winner@b.com"}
	require.NoError(t, store.MemoryStore.PutIfAbsent(ctx, "u1", winner))

	// 预读看不到胜者，模拟两个创建者同时通过预读
	store.getHook = func(n int32) error {
		if n == 1 {
			return kv.ErrNotFound
		}

		return nil
	}

	res, err := newUsers(store, &recordingSleep{}).Create(ctx, map[string]any{"userId": "u1", "email": "loser@b.com"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "winner@b.com", res.Record.String("email"))
}

func TestCreateVanishedAfterConditionalCheck(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.getHook = func(int32) error { return kv.ErrNotFound }
	store.putHook = func(int32) error { return kv.ErrConditionFailed }

	_, err := newUsers(store, &recordingSleep{}).Create(ctx, map[string]any{"userId": "u1", "email": "a@b.com"})
	require.Error(t, err)
	assert.True(t, service.IsStore(err))
	assert.Equal(t, int32(2), store.puts.Load(), "whole create is retried exactly once")
}

func TestCreateStoreFailureIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	store.putHook = func(int32) error { return errTransient }

	_, err := newUsers(store, &recordingSleep{}).Create(ctx, map[string]any{"userId": "u1", "email": "a@b.com"})
	require.Error(t, err)
	assert.True(t, service.IsStore(err))
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, int32(1), store.puts.Load())
}

func TestValidationPrecedesSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		message string
	}{
		{"missing email", map[string]any{"userId": "u1"}, "missing required fields: email"},
		{"missing both", map[string]any{}, "missing required fields: userId, email"},
		{"empty id", map[string]any{"userId": "", "email": "a@b.com"}, "missing required fields: userId"},
		{"non-string email", map[string]any{"userId": "u1", "email": 42.0}, "fields must be strings: email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFaultyStore()

			_, err := newUsers(store, &recordingSleep{}).Create(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, service.IsValidation(err))
			assert.Equal(t, tt.message, err.Error())
			assert.Zero(t, store.gets.Load())
			assert.Zero(t, store.puts.Load())
		})
	}
}

func TestUpdatePreservesIdentity(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore()
	users := newUsers(store, &recordingSleep{})

	_, err := users.Create(ctx, map[string]any{"userId": "u1", "email": "a@b.com"})
	require.NoError(t, err)

	rec, err := users.Update(ctx, "u1", map[string]any{"userId": "other", "email": "new@b.com"})
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.String("userId"))
	assert.Equal(t, "new@b.com", rec.String("email"))

	updated, ok := rec.Int64(model.FieldUpdatedAt)
	assert.True(t, ok)
	assert.Equal(t, fixedNow.Unix(), updated)

	_, err = store.MemoryStore.Get(ctx, "other")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestUpdateRequiresExistence(t *testing.T) {
	store := newFaultyStore()

	_, err := newUsers(store, &recordingSleep{}).Update(context.Background(), "ghost", map[string]any{"email": "x@y.z"})
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	users := newUsers(newFaultyStore(), &recordingSleep{})

	require.NoError(t, users.Delete(ctx, "ghost"))

	_, err := users.Create(ctx, map[string]any{"userId": "u1", "email": "a@b.com"})
	require.NoError(t, err)
	require.NoError(t, users.Delete(ctx, "u1"))
	require.NoError(t, users.Delete(ctx, "u1"))

	_, err = users.Get(ctx, "u1")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetDistinguishesAbsenceFromFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("absent is not retried", func(t *testing.T) {
		store := newFaultyStore()
		sleep := &recordingSleep{}

		_, err := newUsers(store, sleep).Get(ctx, "ghost")
		assert.ErrorIs(t, err, service.ErrNotFound)
		assert.False(t, service.IsStore(err))
		assert.Equal(t, int32(1), store.gets.Load())
		assert.Empty(t, sleep.delays)
	})

	t.Run("transient faults exhaust retries", func(t *testing.T) {
		store := newFaultyStore()
		store.getHook = func(int32) error { return errTransient }
		sleep := &recordingSleep{}

		_, err := newUsers(store, sleep).Get(ctx, "u1")
		require.Error(t, err)
		assert.True(t, service.IsStore(err))
		assert.ErrorIs(t, err, errTransient)
		assert.Equal(t, int32(3), store.gets.Load())
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleep.delays)
	})

	t.Run("transient fault then success", func(t *testing.T) {
		store := newFaultyStore()
		require.NoError(t, store.MemoryStore.PutIfAbsent(ctx, "u1", model.Record{"userId": "u1"}))
		store.getHook = func(n int32) error {
			if n == 1 {
				return errTransient
			}

			return nil
		}
		sleep := &recordingSleep{}

		rec, err := newUsers(store, sleep).Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", rec.String("userId"))
		assert.Equal(t, []time.Duration{100 * time.Millisecond}, sleep.delays)
	})
}

func TestAssetUploadAndDownload(t *testing.T) {
	ctx := context.Background()
	assets := service.NewAssets(newFaultyStore(), &fakeSigner{},
		service.WithClock(clock),
		service.WithEnv(model.Env{AssetsBucket: "bucket"}),
	)

	res, err := assets.Create(ctx, map[string]any{"assetId": "a1", "fileName": "f.txt"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "https://blob.test/bucket/assets/a1/f.txt?op=put&ct=application/octet-stream", res.UploadURL)
	assert.Equal(t, model.StatusPending, res.Record.String(model.FieldStatus))

	again, err := assets.Create(ctx, map[string]any{"assetId": "a1", "fileName": "g.txt"})
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Empty(t, again.UploadURL)
	assert.Equal(t, "f.txt", again.Record.String(model.FieldFileName))

	dl, err := assets.Download(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "https://blob.test/bucket/assets/a1/f.txt?op=get", dl.URL)
	assert.Equal(t, "f.txt", dl.FileName)
	assert.Equal(t, model.DefaultContentType, dl.ContentType)

	_, err = assets.Download(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAssetSignFailureIsStoreError(t *testing.T) {
	assets := service.NewAssets(newFaultyStore(), &fakeSigner{err: errors.New("no credentials")})

	_, err := assets.Create(context.Background(), map[string]any{"assetId": "a1", "fileName": "f.txt"})
	require.Error(t, err)
	assert.True(t, service.IsStore(err))
}
