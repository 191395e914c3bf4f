// Package app 组装配置、存储、事件与服务，提供 HTTP 服务、Lambda 入口与 CLI 共用的初始化流程.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/assetvault/pkg/configs"
	"github.com/yeisme/assetvault/pkg/internal/events"
	"github.com/yeisme/assetvault/pkg/internal/handle"
	"github.com/yeisme/assetvault/pkg/internal/jobs"
	"github.com/yeisme/assetvault/pkg/internal/model"
	"github.com/yeisme/assetvault/pkg/internal/router"
	"github.com/yeisme/assetvault/pkg/internal/service"
	"github.com/yeisme/assetvault/pkg/internal/storage"
	"github.com/yeisme/assetvault/pkg/log"
	"github.com/yeisme/assetvault/pkg/metrics"
	"github.com/yeisme/assetvault/pkg/middleware"
	"github.com/yeisme/assetvault/pkg/retry"
	"github.com/yeisme/assetvault/pkg/scheduler"
	"github.com/yeisme/assetvault/pkg/tracing"
)

// Core 处理请求所需的依赖.
type Core struct {
	Config     *configs.AppConfig
	Manager    *storage.Manager
	Events     *events.Publisher
	Dispatcher *handle.Dispatcher
}

// Bootstrap 加载配置并初始化追踪、指标、存储、事件与服务.
func Bootstrap(ctx context.Context, configPath string) (*Core, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	cfg := configs.GetConfig()

	log.Init()

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return NewCore(ctx, cfg)
}

// NewCore 使用已加载的配置构建依赖.
func NewCore(ctx context.Context, cfg *configs.AppConfig) (*Core, error) {
	policy, err := retry.New(cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("init retry policy: %w", err)
	}

	manager, err := storage.Init(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	publisher, err := events.New(ctx, &cfg.Events)
	if err != nil {
		_ = manager.Close()
		return nil, fmt.Errorf("init events: %w", err)
	}

	opts := []service.Option{
		service.WithRetry(policy),
		service.WithEvents(publisher),
		service.WithEnv(model.Env{AssetsBucket: cfg.S3.AssetsBucket}),
	}

	return &Core{
		Config:  cfg,
		Manager: manager,
		Events:  publisher,
		Dispatcher: handle.NewDispatcher(
			service.NewUsers(manager.Users, opts...),
			service.NewAssets(manager.Assets, manager.Signer, opts...),
		),
	}, nil
}

// Close 释放事件、存储与追踪资源.
func (c *Core) Close(ctx context.Context) error {
	return errors.Join(
		c.Events.Close(),
		c.Manager.Close(),
		tracing.ShutdownTracer(ctx),
	)
}

// App HTTP 服务.
type App struct {
	*Core

	Engine    *gin.Engine
	Server    *http.Server
	Scheduler *scheduler.Scheduler
}

// NewApp 初始化全部依赖并构建 gin 引擎.
func NewApp(ctx context.Context, configPath string) (*App, error) {
	core, err := Bootstrap(ctx, configPath)
	if err != nil {
		return nil, err
	}

	cfg := core.Config

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := NewEngine(core)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		_ = core.Close(ctx)
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterSweeper(ctx, sched, core.Manager, cfg.Sweeper); err != nil {
		_ = core.Close(ctx)
		return nil, fmt.Errorf("register sweeper: %w", err)
	}

	return &App{
		Core:   core,
		Engine: engine,
		Server: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           engine,
			ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
			WriteTimeout:      cfg.Server.GetTimeoutDuration(),
		},
		Scheduler: sched,
	}, nil
}

// NewEngine 按配置装配中间件与路由.
func NewEngine(core *Core) *gin.Engine {
	cfg := core.Config
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(cfg.Server),
	)

	if cfg.Server.Gzip {
		engine.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	engine.Use(
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.StorageMiddleware(core.Manager),
	)

	metrics.RegisterRoutes(cfg.Metrics, engine)
	router.Register(engine, core.Dispatcher)

	return engine
}

// Run 启动 HTTP 服务与后台任务，收到 SIGINT/SIGTERM 后优雅退出.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	l := log.Logger()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		l.Info().Str("addr", a.Server.Addr).Str("version", configs.AppVersion).Msg("http server listening")

		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		return a.Scheduler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.GetShutdownDuration())
		defer cancel()

		return a.Server.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.GetShutdownDuration())
	defer cancel()

	return errors.Join(err, a.Close(closeCtx))
}
