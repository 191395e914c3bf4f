// Package retry 提供有界重试策略：第 a 次（从 0 开始）失败后等待 initialDelay * 2^a，
// 首次尝试前与最后一次尝试后不等待.
//
// Example:
//
//	p, err := retry.New(configs.GetConfig().Retry)
//	if err != nil {
//		return err
//	}
//
//	rec, err := retry.DoValue(ctx, p, func(ctx context.Context) (model.Record, error) {
//		return store.Get(ctx, id)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/yeisme/assetvault/pkg/configs"
)

// SleepFunc 在两次尝试之间等待 d，ctx 结束时提前返回 ctx.Err().
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy 重试策略，不持有跨调用的可变状态，可并发使用.
type Policy struct {
	// MaxRetries 总尝试次数（含首次），至少为 1.
	MaxRetries int
	// InitialDelay 第一次重试前的等待时间.
	InitialDelay time.Duration
	// Sleep 可替换的等待函数，测试中注入以避免真实休眠.
	Sleep SleepFunc
	// OnRetry 每次决定重试时回调，attempt 为刚失败的尝试序号（从 0 开始）.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Option 修改 Policy.
type Option func(*Policy)

// WithSleep 替换等待函数.
func WithSleep(fn SleepFunc) Option {
	return func(p *Policy) { p.Sleep = fn }
}

// WithOnRetry 设置重试回调.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// New 根据配置构建策略.
func New(cfg configs.RetryConfig, opts ...Option) (*Policy, error) {
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("retry: max_retries must be >= 1, got %d", cfg.MaxRetries)
	}

	if cfg.InitialDelay <= 0 {
		return nil, fmt.Errorf("retry: initial_delay must be > 0, got %s", cfg.InitialDelay)
	}

	p := &Policy{
		MaxRetries:   cfg.MaxRetries,
		InitialDelay: cfg.InitialDelay,
		Sleep:        SleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Default 返回默认策略：3 次尝试，初始等待 100ms.
func Default(opts ...Option) *Policy {
	p, _ := New(configs.RetryConfig{
		MaxRetries:   configs.DefaultRetryMaxRetries,
		InitialDelay: configs.DefaultRetryInitialDelay,
	}, opts...)

	return p
}

// Delay 返回第 a 次失败后的等待时间.
func (p *Policy) Delay(a int) time.Duration {
	if a < 0 {
		return 0
	}

	return p.InitialDelay << uint(a)
}

// backoff 每次调用 Do 时新建，goretry 的 Backoff 带内部计数.
func (p *Policy) backoff() goretry.Backoff {
	return goretry.WithMaxRetries(uint64(p.MaxRetries-1), goretry.NewExponential(p.InitialDelay))
}

// Do 执行 op，直到成功、遇到永久错误或尝试次数耗尽，耗尽时返回最后一次的错误.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}

// DoValue 与 Do 相同，但返回 op 的结果.
func DoValue[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	b := p.backoff()

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return v, pe.err
		}

		delay, stop := b.Next()
		if stop {
			return v, err
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if serr := sleep(ctx, delay); serr != nil {
			return v, errors.Join(serr, err)
		}
	}
}

// SleepContext 是默认的等待实现.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记 err 不应重试，Do 返回时会剥去该标记.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &permanentError{err: err}
}

// IsPermanent 报告 err 是否被 Permanent 标记.
func IsPermanent(err error) bool {
	var pe *permanentError

	return errors.As(err, &pe)
}
