//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"github.com/google/wire"

	"storyloom-api/internal/application/generation"
	"storyloom-api/internal/application/translation"
	"storyloom-api/internal/config"
	"storyloom-api/internal/infrastructure/llm"
	"storyloom-api/internal/infrastructure/messaging"
	"storyloom-api/internal/infrastructure/persistence/localcache"
	"storyloom-api/internal/infrastructure/persistence/postgres"
	"storyloom-api/internal/infrastructure/persistence/redis"
	"storyloom-api/internal/interfaces/http/handler"
	"storyloom-api/internal/interfaces/http/middleware"
	"storyloom-api/internal/interfaces/http/router"
)

// App API 服务依赖容器
type App struct {
	Router      *router.Router
	PgClient    *postgres.Client
	RedisClient *redis.Client
}

// Worker 任务消费进程依赖容器
type Worker struct {
	Orchestrator *generation.Orchestrator
	Translations *translation.Service
	PgClient     *postgres.Client
	RedisClient  *redis.Client
}

// InitializeApp 初始化 API 服务
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		DataSet,
		DomainSet,
		HTTPSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// InitializeWorker 初始化任务消费进程
func InitializeWorker(cfg *config.Config) (*Worker, func(), error) {
	wire.Build(
		DataSet,
		DomainSet,
		wire.Struct(new(Worker), "*"),
	)
	return nil, nil, nil
}

// DataSet 数据层提供者集合
var DataSet = wire.NewSet(
	ProvidePostgresClient,
	ProvideRedisClient,
	ProvideMessagingProducer,
	ProvideLocalCache,
	postgres.NewStoryRepo,
	postgres.NewChapterRepo,
	postgres.NewTranslationRequestRepo,
	postgres.NewTranslationRepo,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// DomainSet 业务层提供者集合
var DomainSet = wire.NewSet(
	ProvideGenerationConfig,
	ProvideTranslationConfig,
	llm.NewEinoFactory,
	llm.NewChapterGenerator,
	llm.NewTranslator,
	generation.NewHistoryManager,
	generation.NewOrchestrator,
	generation.NewScheduler,
	translation.NewService,
	wire.Bind(new(generation.ChapterGenerator), new(*llm.ChapterGenerator)),
	wire.Bind(new(generation.JobPublisher), new(*messaging.Producer)),
	wire.Bind(new(translation.Translator), new(*llm.Translator)),
	wire.Bind(new(translation.JobPublisher), new(*messaging.Producer)),
)

// HTTPSet HTTP 层提供者集合
var HTTPSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewStoryHandler,
	handler.NewGenerationHandler,
	handler.NewTranslationHandler,
	handler.NewQueueHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideLocalCache 提供进程内翻译缓存
func ProvideLocalCache(cfg *config.Config) *localcache.Cache {
	return localcache.New(cfg.Translation.LocalCacheTTL)
}

// ProvideGenerationConfig 提供生成配置
func ProvideGenerationConfig(cfg *config.Config) *config.GenerationConfig {
	return &cfg.Generation
}

// ProvideTranslationConfig 提供翻译配置
func ProvideTranslationConfig(cfg *config.Config) *config.TranslationConfig {
	return &cfg.Translation
}
