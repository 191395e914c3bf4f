package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/assetvault/pkg/configs"
)

const (
	// limiterIdleTTL 超过该时间未使用的 limiter 会被回收.
	limiterIdleTTL = 10 * time.Minute
	// limiterSweepEvery 回收检查间隔（按请求触发，不启动后台 goroutine）.
	limiterSweepEvery = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet 按键维护令牌桶.
type limiterSet struct {
	mu        sync.Mutex
	rps       rate.Limit
	burst     int
	visitors  map[string]*visitor
	lastSweep time.Time
	now       func() time.Time
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// reserve 返回是否放行，拒绝时给出建议的等待时间.
func (s *limiterSet) reserve(key string) (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweepEvery {
		for k, v := range s.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(s.visitors, k)
			}
		}

		s.lastSweep = now
	}

	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.visitors[key] = v
	}

	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}

	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}

	return true, 0
}

// RateLimitMiddleware 令牌桶限流. key 为 global、ip 或 header:Name（缺失时回落到 IP）.
// 被拒绝的请求返回 429 和 Retry-After.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	burst := max(cfg.Burst, 1)
	set := newLimiterSet(cfg.RPS, burst)
	keyOf := limitKeyFunc(strings.ToLower(strings.TrimSpace(cfg.Key)))

	return func(c *gin.Context) {
		ok, wait := set.reserve(keyOf(c))
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			reject(c, http.StatusTooManyRequests, "rate_limit", "Too many requests")

			return
		}

		c.Next()
	}
}

func limitKeyFunc(mode string) func(c *gin.Context) string {
	switch {
	case mode == "global" || mode == "":
		return func(*gin.Context) string { return "global" }
	case strings.HasPrefix(mode, "header:"):
		header := strings.TrimPrefix(mode, "header:")

		return func(c *gin.Context) string {
			if v := c.GetHeader(header); v != "" {
				return "h:" + v
			}

			return "ip:" + clientIP(c)
		}
	default:
		return func(c *gin.Context) string { return "ip:" + clientIP(c) }
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	return c.Request.RemoteAddr
}
