package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/redisx"
)

func TestStreamConsumer_ConsumeBatch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	cache := NewCacheManager(cfg, client, zap.NewNop())
	p := setupProcessor(t, cache)
	c := NewStreamConsumer(cfg, client, p, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, redisx.CreateConsumerGroup(ctx, client, cfg.Ingest.Stream, cfg.Ingest.ConsumerGroup))

	_, err := redisx.PublishJSONToStream(ctx, client, cfg.Ingest.Stream, map[string]interface{}{
		"patient_id":       "patient-1",
		"heart_rate":       75,
		"respiration_rate": 16,
		"movement":         2,
		"presence":         true,
		"timestamp":        time.Now().Add(-time.Minute).Format(time.RFC3339),
	})
	require.NoError(t, err)

	require.NoError(t, c.consumeBatch(ctx))

	// 消息已处理：缓存里有病人的最新读数
	reading, err := cache.GetRealtime(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 75.0, reading.HeartRate)

	// 消息已 ACK：pending 列表为空
	pending, err := client.XPending(ctx, cfg.Ingest.Stream, cfg.Ingest.ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

// 坏消息也被 ACK，不会卡住消费者组
func TestStreamConsumer_BadMessageAcked(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cfg := testConfig()
	p := setupProcessor(t, nil)
	c := NewStreamConsumer(cfg, client, p, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, redisx.CreateConsumerGroup(ctx, client, cfg.Ingest.Stream, cfg.Ingest.ConsumerGroup))

	// 缺 heart_rate 的坏载荷
	_, err := redisx.PublishJSONToStream(ctx, client, cfg.Ingest.Stream, map[string]interface{}{
		"patient_id": "patient-1",
	})
	require.NoError(t, err)

	require.NoError(t, c.consumeBatch(ctx))

	pending, err := client.XPending(ctx, cfg.Ingest.Stream, cfg.Ingest.ConsumerGroup).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

func TestMQTTConsumer_HandleMessage(t *testing.T) {
	_, cache := setupCacheManager(t)
	p := setupProcessor(t, cache)
	c := &MQTTConsumer{config: testConfig(), processor: p, logger: zap.NewNop()}

	err := c.handleMessage("vitals/patient-9/data",
		[]byte(`{"heart_rate": 80, "respiration_rate": 17, "movement": 1, "presence": true}`))
	require.NoError(t, err)

	reading, err := cache.GetRealtime(context.Background(), "patient-9")
	require.NoError(t, err)
	assert.Equal(t, "patient-9", reading.PatientID)
	assert.Equal(t, 80.0, reading.HeartRate)
}

func TestMQTTConsumer_InvalidTopic(t *testing.T) {
	p := setupProcessor(t, nil)
	c := &MQTTConsumer{config: testConfig(), processor: p, logger: zap.NewNop()}

	err := c.handleMessage("vitals/data", []byte(`{}`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid topic format")

	err = c.handleMessage("vitals//data", []byte(`{}`))
	assert.Error(t, err)
}
