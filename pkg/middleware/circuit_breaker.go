package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"

	"github.com/yeisme/assetvault/pkg/configs"
	nlog "github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/metrics"
)

// errServerFailure 标记一次 5xx 响应，仅用于熔断计数.
var errServerFailure = errors.New("server failure")

// CircuitBreakerMiddleware 记录存储故障引起的 5xx；失败比例超过阈值后直接返回 503，
// 让后端存储有时间恢复. 4xx（校验失败、不存在）不计入失败.
func CircuitBreakerMiddleware(cfg configs.CircuitBreakerConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "record-store",
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			nlog.Logger().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return func(c *gin.Context) {
		_, err := cb.Execute(func() (any, error) {
			c.Next()

			if c.Writer.Status() >= http.StatusInternalServerError {
				return nil, errServerFailure
			}

			return nil, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reject(c, http.StatusServiceUnavailable, "circuit_open", "Service temporarily unavailable")
		}
	}
}

// reject 以与业务错误相同的 {"error": msg} 形式拒绝请求并计数.
func reject(c *gin.Context, status int, reason, msg string) {
	metrics.Throttled.WithLabelValues(reason).Inc()
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
