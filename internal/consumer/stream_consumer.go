package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/redisx"
)

// StreamConsumer 读数摄入的 Redis Streams 消费者
// 以消费者组身份消费，处理成功后 ACK；结构性校验失败的消息
// 也 ACK（重试不会使坏消息变好），读 Redis 失败时指数退避
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	processor   *Processor
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	processor *Processor,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		processor:   processor,
		logger:      logger,
	}
}

// Start 启动消费循环，阻塞直到 ctx 取消
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Ingest.Stream
	group := c.config.Ingest.ConsumerGroup

	if err := redisx.CreateConsumerGroup(ctx, c.redisClient, stream, group); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", stream),
		zap.String("consumer_group", group),
		zap.String("consumer_name", c.config.Ingest.ConsumerName),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeBatch(ctx); err != nil {
				c.logger.Error("Failed to consume readings stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避后重试
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeBatch 读取并处理一批消息
func (c *StreamConsumer) consumeBatch(ctx context.Context) error {
	messages, err := redisx.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Ingest.Stream,
		c.config.Ingest.ConsumerGroup,
		c.config.Ingest.ConsumerName,
		c.config.Ingest.BatchSize,
		5*time.Second,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process stream message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条，不中断
		}

		// 无论成功失败都 ACK：失败的消息重试结果不会改变
		if err := redisx.Ack(ctx, c.redisClient, c.config.Ingest.Stream, c.config.Ingest.ConsumerGroup, msg.ID); err != nil {
			c.logger.Error("Failed to ack stream message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条消息（"data" 字段为读数 JSON）
func (c *StreamConsumer) processMessage(ctx context.Context, msg redisx.StreamMessage) error {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("message missing data field: %s", msg.ID)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return fmt.Errorf("failed to unmarshal reading payload: %w", err)
	}

	if _, err := c.processor.HandleRaw(ctx, "", raw); err != nil {
		return fmt.Errorf("failed to handle reading: %w", err)
	}

	return nil
}
