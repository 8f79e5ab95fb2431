// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-api/pkg/metrics"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishChapterJob 发布章节生成任务
func (p *Producer) PublishChapterJob(ctx context.Context, msgType string, job *ChapterJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, msgType, job.StoryID, job)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamChapterGen, msg)
}

// PublishTranslationJob 发布翻译任务
func (p *Producer) PublishTranslationJob(ctx context.Context, job *TranslationJobMessage) (string, error) {
	msg, err := NewMessage(job.RequestID, MsgTypeTranslateChapter, job.StoryID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("target_language", job.TargetLanguage)
	return p.Publish(ctx, StreamTranslationReq, msg)
}

// StreamHealth 单个流的健康状况
type StreamHealth struct {
	Stream   string `json:"stream"`
	Length   int64  `json:"length"`
	Pending  int64  `json:"pending"`
	DLQDepth int64  `json:"dlq_depth"`
}

// QueueHealth 汇总所有业务流的积压情况
func (p *Producer) QueueHealth(ctx context.Context) ([]StreamHealth, error) {
	ctx, span := tracer.Start(ctx, "producer.QueueHealth")
	defer span.End()

	streams := []Stream{StreamChapterGen, StreamTranslationReq}
	healths := make([]StreamHealth, 0, len(streams))

	for _, stream := range streams {
		length, err := p.client.XLen(ctx, string(stream)).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to get stream length for %s: %w", stream, err)
		}

		var pending int64
		if info, err := p.client.XPending(ctx, string(stream), consumerGroupFor(stream)).Result(); err == nil {
			pending = info.Count
		}

		dlqDepth, err := p.client.XLen(ctx, stream.DLQStream()).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to get dlq length for %s: %w", stream, err)
		}

		metrics.QueueDepth.WithLabelValues(string(stream)).Set(float64(length))

		healths = append(healths, StreamHealth{
			Stream:   string(stream),
			Length:   length,
			Pending:  pending,
			DLQDepth: dlqDepth,
		})
	}
	return healths, nil
}

func consumerGroupFor(stream Stream) string {
	switch stream {
	case StreamTranslationReq:
		return string(ConsumerGroupTranslationWorker)
	default:
		return string(ConsumerGroupChapterWorker)
	}
}
