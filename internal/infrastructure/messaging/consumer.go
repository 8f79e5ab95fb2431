// Package messaging 提供消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-api/pkg/logger"
	"storyloom-api/pkg/metrics"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer Redis Streams 消费者
// 每条消息处理成功后 XACK；失败的消息留在 pending 列表，
// 按退避策略重投，超过重试上限后移入死信队列
type Consumer struct {
	client        *redis.Client
	stream        Stream
	group         ConsumerGroup
	consumerName  string
	blockTimeout  time.Duration
	claimInterval time.Duration
	reclaimIdle   time.Duration
	retryLimit    int
	backoff       BackoffConfig

	handlers map[string]MessageHandler
	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream        Stream
	Group         ConsumerGroup
	ConsumerName  string
	BlockTimeout  time.Duration
	ClaimInterval time.Duration
	RetryLimit    int
	Backoff       BackoffConfig
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}

	reclaimIdle := 5 * time.Minute
	if idle := cfg.Backoff.Max * 2; idle > reclaimIdle {
		reclaimIdle = idle
	}

	return &Consumer{
		client:        client,
		stream:        cfg.Stream,
		group:         cfg.Group,
		consumerName:  cfg.ConsumerName,
		blockTimeout:  cfg.BlockTimeout,
		claimInterval: cfg.ClaimInterval,
		reclaimIdle:   reclaimIdle,
		retryLimit:    cfg.RetryLimit,
		backoff:       cfg.Backoff,
		handlers:      make(map[string]MessageHandler),
		stopCh:        make(chan struct{}),
	}
}

// RegisterHandler 按消息类型注册处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// Start 创建消费者组并启动消费循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	err := c.client.XGroupCreateMkStream(ctx, string(c.stream), string(c.group), "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	go c.run(ctx)
	return nil
}

// Stop 停止消费者
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		close(c.stopCh)
		c.running = false
	}
}

func (c *Consumer) run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("consumer started",
		"stream", c.stream,
		"group", c.group,
		"consumer", c.consumerName,
	)

	lastReclaim := time.Now().Add(-c.claimInterval)

	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped", "reason", "context cancelled")
			return
		case <-c.stopCh:
			log.Info("consumer stopped")
			return
		default:
		}

		// 先补投本消费者的到期重试，再周期性接管失联消费者的积压
		c.redeliverPending(ctx, false, 0)
		if time.Since(lastReclaim) >= c.claimInterval {
			c.redeliverPending(ctx, true, c.reclaimIdle)
			lastReclaim = time.Now()
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    string(c.group),
			Consumer: c.consumerName,
			Streams:  []string{string(c.stream), ">"},
			Count:    10,
			Block:    c.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			log.Error("failed to read from stream", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, xmsg := range s.Messages {
				c.handleDelivery(ctx, xmsg)
			}
		}
	}
}

// handleDelivery 处理一次投递
func (c *Consumer) handleDelivery(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.handleDelivery",
		trace.WithAttributes(
			attribute.String("stream", string(c.stream)),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, ok := decodeDelivery(xmsg)
	if !ok {
		// 无法解析的消息重试也不会成功，直接确认丢弃
		logger.FromContext(ctx).Error("discarding undecodable message", "message_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		return
	}

	ctx = c.observableContext(ctx, msg)
	log := logger.FromContext(ctx)

	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("story.id", msg.StoryID),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !exists {
		log.Warn("no handler for message type", "type", msg.Type)
		c.ack(ctx, xmsg.ID)
		return
	}

	if err := handler(ctx, msg); err != nil {
		span.RecordError(err)
		metrics.QueueProcessed.WithLabelValues(string(c.stream), "error").Inc()

		retryCount := c.deliveryCount(ctx, xmsg.ID)
		if retryCount >= c.retryLimit {
			log.Warn("message moved to DLQ after max retries",
				"message_id", msg.ID, "retry_count", retryCount, "error", err)
			c.deadLetter(ctx, msg, err)
			c.ack(ctx, xmsg.ID)
			return
		}
		// 不确认，留在 pending 列表等退避到期后重投
		log.Error("handler failed, message left pending",
			"error", err, "message_id", msg.ID, "retry_count", retryCount)
		return
	}

	metrics.QueueProcessed.WithLabelValues(string(c.stream), "success").Inc()
	c.ack(ctx, xmsg.ID)
}

// redeliverPending 重投 pending 列表中的消息
// others=false 时只处理本消费者名下到期退避的消息；
// others=true 时接管其他消费者闲置超过 minIdle 的消息
func (c *Consumer) redeliverPending(ctx context.Context, others bool, minIdle time.Duration) {
	args := &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  "-",
		End:    "+",
		Count:  20,
	}
	if !others {
		args.Consumer = c.consumerName
	}

	pending, err := c.client.XPendingExt(ctx, args).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromContext(ctx).Error("failed to query pending messages", "error", err)
		}
		return
	}

	for _, p := range pending {
		if others {
			if p.Consumer == c.consumerName || p.Idle < minIdle {
				continue
			}
		}

		retryCount := int(p.RetryCount)
		if retryCount >= c.retryLimit {
			c.claimToDLQ(ctx, p.ID, minIdle)
			continue
		}

		wait := minIdle
		if !others {
			wait = c.backoff.CalculateBackoff(retryCount)
			if p.Idle < wait {
				continue
			}
		}

		claimed, claimErr := c.claim(ctx, p.ID, wait)
		if claimErr != nil {
			logger.FromContext(ctx).Error("failed to claim pending message",
				"error", claimErr, "message_id", p.ID)
			continue
		}
		for _, xmsg := range claimed {
			c.handleDelivery(ctx, xmsg)
		}
	}
}

// claimToDLQ 接管超限消息并移入死信队列
func (c *Consumer) claimToDLQ(ctx context.Context, id string, minIdle time.Duration) {
	claimed, err := c.claim(ctx, id, minIdle)
	if err != nil {
		logger.FromContext(ctx).Error("failed to claim message for DLQ",
			"error", err, "message_id", id)
		return
	}
	for _, xmsg := range claimed {
		if msg, ok := decodeDelivery(xmsg); ok {
			c.deadLetter(ctx, msg, fmt.Errorf("message exceeded max retries"))
		}
		c.ack(ctx, xmsg.ID)
	}
}

func (c *Consumer) claim(ctx context.Context, id string, minIdle time.Duration) ([]redis.XMessage, error) {
	return c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   string(c.stream),
		Group:    string(c.group),
		Consumer: c.consumerName,
		MinIdle:  minIdle,
		Messages: []string{id},
	}).Result()
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.client.XAck(ctx, string(c.stream), string(c.group), id).Err(); err != nil {
		logger.FromContext(ctx).Error("failed to ack message", "error", err, "message_id", id)
	}
}

// deliveryCount 通过 XPENDING 查询消息的投递次数
func (c *Consumer) deliveryCount(ctx context.Context, messageID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: string(c.stream),
		Group:  string(c.group),
		Start:  messageID,
		End:    messageID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// deadLetter 将消息连同失败原因写入死信流
func (c *Consumer) deadLetter(ctx context.Context, msg *Message, cause error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"original_stream": string(c.stream),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream.DLQStream(),
		Values: map[string]interface{}{"data": string(payload)},
	})
	metrics.QueueProcessed.WithLabelValues(string(c.stream), "dlq").Inc()
}

// observableContext 把消息标识注入日志上下文
func (c *Consumer) observableContext(ctx context.Context, msg *Message) context.Context {
	if msg.StoryID != "" {
		ctx = logger.WithContext(ctx, logger.StoryIDKey, msg.StoryID)
	}
	if msg.ID != "" {
		ctx = logger.WithContext(ctx, logger.JobIDKey, msg.ID)
	}
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	return ctx
}

// decodeDelivery 从 XMessage 还原业务消息
func decodeDelivery(xmsg redis.XMessage) (*Message, bool) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		return nil, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, false
	}
	return &msg, true
}

// MonitorDLQ 周期性检查死信队列深度并告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	log := logger.FromContext(ctx)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			dlq := c.stream.DLQStream()
			info, err := c.client.XInfoStream(ctx, dlq).Result()
			if err != nil {
				continue
			}
			if info.Length > alertThreshold {
				log.Warn("DLQ backlog above threshold", "stream", dlq, "count", info.Length)
			}
		}
	}
}
