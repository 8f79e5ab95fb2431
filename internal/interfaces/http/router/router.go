// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storyloom-api/internal/config"
	"storyloom-api/internal/interfaces/http/handler"
	"storyloom-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health      *handler.HealthHandler
	Story       *handler.StoryHandler
	Generation  *handler.GenerationHandler
	Translation *handler.TranslationHandler
	Queue       *handler.QueueHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers Handlers
	limiter  middleware.RateLimiter
}

// New 创建新的路由器
func New(cfg *config.Config, handlers Handlers, limiter middleware.RateLimiter) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(r.cfg.Security.CORS))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes() {
	// 系统端点
	r.engine.GET("/health", r.handlers.Health.Health)
	r.engine.GET("/ready", r.handlers.Health.Ready)
	r.engine.GET("/live", r.handlers.Health.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		path := r.cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, gin.WrapH(promhttp.Handler()))
	}

	rateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           r.cfg.Security.RateLimit.Enabled,
		RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
	}, r.limiter)

	v1 := r.engine.Group("/v1")
	v1.Use(rateLimit)
	{
		stories := v1.Group("/stories")
		{
			stories.POST("", r.handlers.Story.Create)
			stories.GET("/:sid", r.handlers.Story.Get)
			stories.GET("/:sid/chapters", r.handlers.Story.ListChapters)
			stories.GET("/:sid/chapters/:seq", r.handlers.Story.GetChapter)
			stories.POST("/:sid/chapters/:seq/rating", r.handlers.Story.RateChapter)

			// 流式生成端点（NDJSON）
			stories.POST("/:sid/chapters/generate/stream", r.handlers.Generation.GenerateFirstChapter)
			stories.POST("/:sid/chapters/continue/stream", r.handlers.Generation.ContinueStory)
		}

		translations := v1.Group("/translations")
		{
			translations.POST("", r.handlers.Translation.Request)
			translations.GET("/status", r.handlers.Translation.Status)
			translations.DELETE("/expired", r.handlers.Translation.SweepExpired)
		}

		// 同步翻译
		v1.POST("/translate", r.handlers.Translation.Translate)

		// 队列观测
		v1.GET("/queue/health", r.handlers.Queue.Health)
	}
}
