// Package jobs 注册后台维护任务.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/internal/storage/kv"
	"github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/metrics"
	"github.com/yeisme/assetvault/pkg/scheduler"
)

// Sweeper 删除已过 ttl 的记录. 只处理实现了 kv.Purger 的存储，
// 自带过期能力的后端（dynamodb、redis、nats）不会被触碰.
type Sweeper struct {
	mgr *storage.Manager
	now func() time.Time
}

// NewSweeper 创建清理器.
func NewSweeper(mgr *storage.Manager) *Sweeper {
	return &Sweeper{mgr: mgr, now: time.Now}
}

// Sweep 对每张逻辑表执行一次清理，返回各表删除的数量.
func (s *Sweeper) Sweep(ctx context.Context) (map[string]int, error) {
	l := log.Logger().With().Str("job", JobSweepExpired).Logger()
	now := s.now()
	purged := make(map[string]int)

	var errs []error

	for _, kind := range []model.Kind{model.User, model.Asset} {
		p, ok := s.mgr.Store(kind.Name).(kv.Purger)
		if !ok {
			continue
		}

		table := s.mgr.Tables[kind.Name]

		n, err := p.PurgeExpired(ctx, now)
		if err != nil {
			l.Error().Err(err).Str("table", table).Msg("purge expired records failed")
			errs = append(errs, err)

			continue
		}

		purged[table] = n
		metrics.ExpiredRecords.WithLabelValues(table).Add(float64(n))

		if n > 0 {
			l.Info().Str("table", table).Int("purged", n).Msg("expired records purged")
		}
	}

	return purged, errors.Join(errs...)
}

// RegisterSweeper 按配置间隔注册过期清理任务；配置关闭时什么也不做.
func RegisterSweeper(ctx context.Context, sched *scheduler.Scheduler, mgr *storage.Manager, cfg configs.SweeperConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if sched == nil {
		return errors.New("scheduler is nil")
	}

	if mgr == nil {
		return storage.ErrNoManager
	}

	sw := NewSweeper(mgr)

	return sched.AddInterval(ctx, JobSweepExpired, cfg.Interval, func(ctx context.Context) {
		_, _ = sw.Sweep(ctx)
	})
}
