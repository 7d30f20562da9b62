package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/models"
	"vitalwatch/internal/redisx"
)

// RedisSink 报警的 Redis 投递目标
// 同时写两个出口：
//   - Pub/Sub 频道 {prefix}{patient_id}，供订阅了该病人的展示层实时接收
//   - 报警 Stream，供下游服务（通知网关、审计）以消费者组消费
type RedisSink struct {
	config *config.Config
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSink 创建 Redis 投递目标
func NewRedisSink(cfg *config.Config, client *redis.Client, logger *zap.Logger) *RedisSink {
	return &RedisSink{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// Name 目标名
func (s *RedisSink) Name() string {
	return "redis"
}

// Deliver 投递报警
func (s *RedisSink) Deliver(ctx context.Context, alert *models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	// 1. 发布到病人频道
	channel := s.config.Alerts.ChannelPrefix + alert.PatientID
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish alert to channel %s: %w", channel, err)
	}

	// 2. 追加到报警 Stream
	if _, err := redisx.PublishJSONToStream(ctx, s.client, s.config.Alerts.Stream, alert); err != nil {
		return fmt.Errorf("failed to publish alert to stream: %w", err)
	}

	return nil
}

// WebhookSink 外部通知服务的 webhook 投递目标
type WebhookSink struct {
	url    string
	client *resty.Client
	logger *zap.Logger
}

// NewWebhookSink 创建 webhook 投递目标
func NewWebhookSink(url string, logger *zap.Logger) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: resty.New(),
		logger: logger,
	}
}

// Name 目标名
func (s *WebhookSink) Name() string {
	return "webhook"
}

// Deliver POST 报警 JSON 到配置的 webhook 地址
// 非 2xx 响应视为投递失败
func (s *WebhookSink) Deliver(ctx context.Context, alert *models.Alert) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(alert).
		Post(s.url)
	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}
	return nil
}
