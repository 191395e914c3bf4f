package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	"github.com/yeisme/assetvault/pkg/internal/storage/s3"
	"github.com/yeisme/assetvault/pkg/retry"
)

var errTransient = errors.New("throughput exceeded")

// faultyStore 在内存存储外包一层调用计数与故障注入.
type faultyStore struct {
	*kv.MemoryStore

	gets, puts, updates, deletes atomic.Int32

	// getHook 返回非 nil 错误时替代真实读取，n 为第几次读取（从 1 开始）
	getHook func(n int32) error
	// putHook 返回非 nil 错误时替代真实写入
	putHook func(n int32) error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: kv.NewMemoryStore()}
}

func (f *faultyStore) Get(ctx context.Context, id string) (model.Record, error) {
	n := f.gets.Add(1)
	if f.getHook != nil {
		if err := f.getHook(n); err != nil {
			return nil, err
		}
	}

	return f.MemoryStore.Get(ctx, id)
}

func (f *faultyStore) PutIfAbsent(ctx context.Context, id string, rec model.Record) error {
	n := f.puts.Add(1)
	if f.putHook != nil {
		if err := f.putHook(n); err != nil {
			return err
		}
	}

	return f.MemoryStore.PutIfAbsent(ctx, id, rec)
}

func (f *faultyStore) Update(ctx context.Context, id string, changes []model.Change) (model.Record, error) {
	f.updates.Add(1)
	return f.MemoryStore.Update(ctx, id, changes)
}

func (f *faultyStore) Delete(ctx context.Context, id string) error {
	f.deletes.Add(1)
	return f.MemoryStore.Delete(ctx, id)
}

// recordingSleep 记录每次等待时长而不真正休眠.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleep) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delays = append(s.delays, d)

	return nil
}

func (s *recordingSleep) policy() *retry.Policy {
	return retry.Default(retry.WithSleep(s.Sleep))
}

// fakeSigner 生成可断言的伪 URL.
type fakeSigner struct {
	err error
}

func (f *fakeSigner) SignUpload(_ context.Context, loc s3.Location, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	return fmt.Sprintf("https://blob.test/%s/%s?op=put&ct=%s", loc.Bucket, loc.Key, contentType), nil
}

func (f *fakeSigner) SignDownload(_ context.Context, loc s3.Location) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	return fmt.Sprintf("https://blob.test/%s/%s?op=get", loc.Bucket, loc.Key), nil
}

func (f *fakeSigner) HealthCheck(context.Context) error { return f.err }
