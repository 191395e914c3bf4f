package service

import (
	"context"
	"errors"
	"time"

	"github.com/yeisme/assetvault/pkg/internal/events"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	"github.com/yeisme/assetvault/pkg/metrics"
)

// createAttempts 条件写入被拒绝而再次读取落空时，整个创建最多执行的次数.
const createAttempts = 2

// 创建结果，作为 record_create_total 的 outcome 标签.
const (
	outcomeCreated = "created"
	outcomeExists  = "exists"
	outcomeRace    = "race"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// CreateResult 创建结果：Created 为 false 表示记录已存在，Record 为已存在的记录.
type CreateResult struct {
	Record  model.Record
	Created bool
}

// Create 幂等创建：
//  1. 校验必填字段，失败时不访问存储；
//  2. 按标识预读，已存在则直接返回；
//  3. 条件写入（标识不存在才成功）；
//  4. 条件被拒绝说明并发创建者先写入，重新读取并返回其记录.
//
// 第 4 步读取落空（记录在期间被删除）时整体重试一次，仍落空则返回 StoreError.
// 其他存储失败在本层不重试.
func (r *Records) Create(ctx context.Context, input map[string]any) (res CreateResult, err error) {
	outcome := outcomeError
	defer func() { metrics.CreateOutcomes.WithLabelValues(r.kind.Name, outcome).Inc() }()

	if missing, invalid := r.kind.Validate(input); len(missing) > 0 || len(invalid) > 0 {
		outcome = outcomeInvalid
		return CreateResult{}, &ValidationError{Missing: missing, Invalid: invalid}
	}

	id, _ := input[r.kind.IDField].(string)

	ctx, span := r.span(ctx, "create", id)
	defer func() { endSpan(span, err) }()

	log := r.logger(ctx, id)

	for attempt := range createAttempts {
		existing, err := r.getOnce(ctx, id)
		if err == nil {
			outcome = outcomeExists
			log.Info().Msg("record already exists")

			return CreateResult{Record: existing}, nil
		}

		if !errors.Is(err, kv.ErrNotFound) {
			log.Error().Err(err).Msg("create pre-check failed")
			return CreateResult{}, storeErr("create", err)
		}

		rec := r.kind.New(input, r.now(), r.env)

		start := time.Now()
		err = r.store.PutIfAbsent(ctx, id, rec)
		r.observe("put", start)

		if err == nil {
			outcome = outcomeCreated
			log.Info().Msg("record created")
			r.publish(ctx, events.TypeCreated, id, rec)

			return CreateResult{Record: rec, Created: true}, nil
		}

		if !errors.Is(err, kv.ErrConditionFailed) {
			log.Error().Err(err).Msg("conditional put failed")
			return CreateResult{}, storeErr("create", err)
		}

		winner, err := r.getOnce(ctx, id)
		if err == nil {
			outcome = outcomeRace
			log.Info().Msg("record already exists (lost create race)")

			return CreateResult{Record: winner}, nil
		}

		if !errors.Is(err, kv.ErrNotFound) {
			log.Error().Err(err).Msg("re-read after conditional check failed")
			return CreateResult{}, storeErr("create", err)
		}

		log.Warn().Int("attempt", attempt+1).Msg("record vanished after conditional check")
	}

	return CreateResult{}, storeErr("create", errVanished)
}

// getOnce 单次读取，不重试.
func (r *Records) getOnce(ctx context.Context, id string) (model.Record, error) {
	defer r.observe("get", time.Now())

	return r.store.Get(ctx, id)
}
