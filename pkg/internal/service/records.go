// Package service 实现记录的创建、读取、更新、删除以及资源的上传/下载 URL 签发.
//
// 服务不持有可变共享状态，存储、签名器、重试策略与事件发布器均在构造时注入：
//
//	users := service.NewRecords(model.User, mgr.Users,
//		service.WithRetry(policy),
//		service.WithEvents(pub),
//	)
//	res, err := users.Create(ctx, body)
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/assetvault/pkg/internal/events"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/metrics"
	"github.com/yeisme/assetvault/pkg/retry"
	"github.com/yeisme/assetvault/pkg/tracing"
)

// Records 单一记录类型上的操作集合.
type Records struct {
	kind   model.Kind
	store  kv.Store
	retry  *retry.Policy
	events *events.Publisher
	env    model.Env
	now    func() time.Time
}

// Option 配置 Records.
type Option func(*Records)

// WithRetry 设置读取的重试策略，默认 3 次尝试、初始等待 100ms.
func WithRetry(p *retry.Policy) Option {
	return func(r *Records) { r.retry = p }
}

// WithEvents 设置事件发布器，nil 表示不发布.
func WithEvents(p *events.Publisher) Option {
	return func(r *Records) { r.events = p }
}

// WithEnv 设置派生字段依赖的部署配置.
func WithEnv(env model.Env) Option {
	return func(r *Records) { r.env = env }
}

// WithClock 替换时钟.
func WithClock(now func() time.Time) Option {
	return func(r *Records) { r.now = now }
}

// NewRecords 创建记录服务.
func NewRecords(kind model.Kind, store kv.Store, opts ...Option) *Records {
	r := &Records{
		kind:  kind,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.retry == nil {
		r.retry = retry.Default()
	}

	// 复制策略，挂上带 kind 标签的重试回调
	p := *r.retry
	prev := p.OnRetry
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RetryAttempts.WithLabelValues(kind.Name, "get").Inc()
		nlog.Logger().Warn().Err(err).
			Str("kind", kind.Name).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("retrying get")

		if prev != nil {
			prev(attempt, delay, err)
		}
	}
	r.retry = &p

	return r
}

// Kind 返回记录类型.
func (r *Records) Kind() model.Kind {
	return r.kind
}

func (r *Records) logger(ctx context.Context, id string) *zerolog.Logger {
	l := nlog.FromContext(ctx).With().Str("kind", r.kind.Name).Str("id", id).Logger()
	return &l
}

func (r *Records) span(ctx context.Context, op, id string) (context.Context, trace.Span) {
	return tracing.StartSpan(ctx, r.kind.Name+"."+op,
		trace.WithAttributes(
			attribute.String("record.kind", r.kind.Name),
			attribute.String("record.id", id),
		))
}

// observe 记录一次存储调用耗时.
func (r *Records) observe(op string, start time.Time) {
	metrics.StoreDuration.WithLabelValues(r.kind.Name, op).Observe(time.Since(start).Seconds())
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

// publish 尽力发布事件，失败只记录日志.
func (r *Records) publish(ctx context.Context, typ, id string, rec model.Record) {
	if r.events == nil {
		return
	}

	if err := r.events.Publish(ctx, events.NewEvent(typ, r.kind.Name, id, rec)); err != nil {
		r.logger(ctx, id).Warn().Err(err).Str("event", typ).Msg("publish event failed")
	}
}

// Get 按标识读取. 不存在返回 ErrNotFound（不重试），其他失败按重试策略重试，
// 耗尽后返回 StoreError.
func (r *Records) Get(ctx context.Context, id string) (rec model.Record, err error) {
	ctx, span := r.span(ctx, "get", id)
	defer func() { endSpan(span, err) }()

	rec, err = retry.DoValue(ctx, r.retry, func(ctx context.Context) (model.Record, error) {
		defer r.observe("get", time.Now())

		rec, err := r.store.Get(ctx, id)
		if errors.Is(err, kv.ErrNotFound) {
			return nil, retry.Permanent(ErrNotFound)
		}

		return rec, err
	})

	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, ErrNotFound):
		return nil, ErrNotFound
	default:
		r.logger(ctx, id).Error().Err(err).Msg("get failed")
		return nil, storeErr("get", err)
	}
}

// Update 覆盖请求体中除标识以外的字段并写入 updatedAt，返回更新后的完整记录.
// 记录不存在时返回 ErrNotFound 且不写入.
func (r *Records) Update(ctx context.Context, id string, body map[string]any) (rec model.Record, err error) {
	ctx, span := r.span(ctx, "update", id)
	defer func() { endSpan(span, err) }()

	changes := r.kind.Changes(body, r.now())

	start := time.Now()
	rec, err = r.store.Update(ctx, id, changes)
	r.observe("update", start)

	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		r.logger(ctx, id).Error().Err(err).Msg("update failed")
		return nil, storeErr("update", err)
	}

	r.logger(ctx, id).Info().Int("fields", len(changes)).Msg("record updated")
	r.publish(ctx, events.TypeUpdated, id, rec)

	return rec, nil
}

// Delete 无条件删除，记录不存在同样成功.
func (r *Records) Delete(ctx context.Context, id string) (err error) {
	ctx, span := r.span(ctx, "delete", id)
	defer func() { endSpan(span, err) }()

	start := time.Now()
	err = r.store.Delete(ctx, id)
	r.observe("delete", start)

	if err != nil {
		r.logger(ctx, id).Error().Err(err).Msg("delete failed")
		return storeErr("delete", err)
	}

	r.logger(ctx, id).Info().Msg("record deleted")
	r.publish(ctx, events.TypeDeleted, id, nil)

	return nil
}
