// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集 HTTP、记录操作与重试指标.
//
// Example:
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	metrics.RequestCounter.WithLabelValues("GET", "/users/:id", "200").Inc()
//	metrics.CreateOutcomes.WithLabelValues("user", "created").Inc()
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/assetvault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// CreateOutcomes 创建结果计数，outcome 为 created、exists、race、invalid、error.
	CreateOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_create_total",
			Help: "Record create attempts by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RetryAttempts 读取重试次数（不含首次尝试）.
	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_retry_attempts_total",
			Help: "Retries issued after transient store failures",
		},
		[]string{"kind", "op"},
	)

	// StoreDuration 记录存储调用耗时.
	StoreDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_store_duration_seconds",
			Help:    "Record store call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "op"},
	)

	// ExpiredRecords 清理任务删除的过期记录数.
	ExpiredRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_expired_total",
			Help: "Records purged by the expiry sweeper",
		},
		[]string{"table"},
	)

	// Throttled 被限流或熔断拒绝的请求数.
	Throttled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_throttled_total",
			Help: "Requests rejected by the rate limiter or circuit breaker",
		},
		[]string{"reason"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
	regOnce  sync.Once
)

// InitMetrics 初始化Metrics，可重复调用.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	regOnce.Do(func() {
		// 注册标准收集器
		if config.RuntimeMetrics {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		registry.MustRegister(RequestCounter, RequestDuration,
			CreateOutcomes, RetryAttempts, StoreDuration, ExpiredRecords, Throttled)
	})

	return nil
}

// RegisterRoutes 在 engine 上挂载指标与 pprof 端点.
func RegisterRoutes(config configs.MetricsConfig, engine *gin.Engine) {
	if !config.Enabled {
		return
	}

	// gorm prometheus 插件注册在默认注册表上，一并导出
	gatherers := prometheus.Gatherers{registry, prometheus.DefaultGatherer}
	engine.GET(config.Path, gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	// 如果启用pprof，注册pprof端点
	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
