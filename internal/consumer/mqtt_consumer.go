package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/mqttx"
)

// MQTTConsumer 床旁设备直连的 MQTT 摄入源
// 订阅 vitals/{patient_id}/data，病人 ID 从主题解析，
// 载荷是读数 JSON（无需内嵌 patient_id）
type MQTTConsumer struct {
	config     *config.Config
	mqttClient *mqttx.Client
	processor  *Processor
	logger     *zap.Logger
}

// NewMQTTConsumer 创建 MQTT 消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttx.Client,
	processor *Processor,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:     cfg,
		mqttClient: mqttClient,
		processor:  processor,
		logger:     logger,
	}
}

// Start 订阅读数主题
func (c *MQTTConsumer) Start() error {
	if err := c.mqttClient.Subscribe(c.config.MQTT.Topic, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to vitals topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.MQTT.Topic),
	)
	return nil
}

// Stop 取消订阅
func (c *MQTTConsumer) Stop() {
	if err := c.mqttClient.Unsubscribe(c.config.MQTT.Topic); err != nil {
		c.logger.Warn("Failed to unsubscribe from vitals topic", zap.Error(err))
	}
}

// handleMessage 处理一条设备消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	// 主题格式：vitals/{patient_id}/data
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[1] == "" {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	patientID := parts[1]

	var raw map[string]interface{}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("failed to unmarshal device payload: %w", err)
	}

	if _, err := c.processor.HandleRaw(context.Background(), patientID, raw); err != nil {
		return fmt.Errorf("failed to handle reading from %s: %w", topic, err)
	}

	return nil
}
