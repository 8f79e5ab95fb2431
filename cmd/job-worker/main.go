// Package main 异步任务执行器入口（job-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"storyloom-api/internal/config"
	"storyloom-api/internal/infrastructure/messaging"
	"storyloom-api/internal/wire"
	"storyloom-api/pkg/logger"
	"storyloom-api/pkg/tracer"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "job-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	worker, cleanup, err := wire.InitializeWorker(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize worker", err)
	}
	defer cleanup()

	streamCfg := cfg.Messaging.RedisStream
	backoff := messaging.BackoffConfig{
		Initial:    streamCfg.RetryBackoff.Initial,
		Max:        streamCfg.RetryBackoff.Max,
		Multiplier: streamCfg.RetryBackoff.Multiplier,
	}

	// 章节生成消费者
	chapterConsumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamChapterGen,
		Group:         messaging.ConsumerGroupChapterWorker,
		ConsumerName:  hostnameConsumerName("chapter"),
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff:       backoff,
	})

	chapterConsumer.RegisterHandler(messaging.MsgTypeFirstChapter, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.ChapterJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, _, err := worker.Orchestrator.GenerateFirstChapter(ctx, payload.StoryID, payload.Directive, nil)
		return err
	})

	chapterConsumer.RegisterHandler(messaging.MsgTypeNextChapter, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.ChapterJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, _, err := worker.Orchestrator.ContinueStory(ctx, payload.StoryID, payload.Directive, nil)
		return err
	})

	// 翻译消费者
	translationConsumer := messaging.NewConsumer(worker.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamTranslationReq,
		Group:         messaging.ConsumerGroupTranslationWorker,
		ConsumerName:  hostnameConsumerName("translation"),
		BlockTimeout:  streamCfg.BlockTimeout,
		ClaimInterval: streamCfg.ClaimInterval,
		RetryLimit:    streamCfg.RetryLimit,
		Backoff:       backoff,
	})

	translationConsumer.RegisterHandler(messaging.MsgTypeTranslateChapter, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.TranslationJobMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return worker.Translations.Process(ctx, payload.RequestID)
	})

	if err := chapterConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start chapter consumer", err)
	}
	if err := translationConsumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start translation consumer", err)
	}

	go chapterConsumer.MonitorDLQ(ctx, 100)
	go translationConsumer.MonitorDLQ(ctx, 100)

	log := logger.FromContext(ctx)
	log.Info("job-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("job-worker shutting down")
	chapterConsumer.Stop()
	translationConsumer.Stop()
}

func hostnameConsumerName(role string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%s-%d", host, role, os.Getpid())
}
