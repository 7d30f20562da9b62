package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/models"
)

// CacheManager 病人只读模型的 Redis 缓存
// 每次分析后写两个键（带 TTL，过期即视为无数据）：
//   - {prefix}{patient_id}{realtime_suffix}：最新读数
//   - {prefix}{patient_id}{analysis_suffix}：完整分析结果
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

func (c *CacheManager) realtimeKey(patientID string) string {
	return c.config.Cache.KeyPrefix + patientID + c.config.Cache.RealtimeSuffix
}

func (c *CacheManager) analysisKey(patientID string) string {
	return c.config.Cache.KeyPrefix + patientID + c.config.Cache.AnalysisSuffix
}

func (c *CacheManager) ttl() time.Duration {
	return time.Duration(c.config.Cache.TTLSeconds) * time.Second
}

// UpdateRealtimeCache 写入病人最新读数
func (c *CacheManager) UpdateRealtimeCache(ctx context.Context, reading *models.Reading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	key := c.realtimeKey(reading.PatientID)
	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl()).Err(); err != nil {
		return fmt.Errorf("failed to set realtime cache: %w", err)
	}

	return nil
}

// UpdateAnalysisCache 写入病人完整分析结果
func (c *CacheManager) UpdateAnalysisCache(ctx context.Context, result *models.AnalysisResult) error {
	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	key := c.analysisKey(result.PatientID)
	if err := c.redisClient.Set(ctx, key, jsonData, c.ttl()).Err(); err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	return nil
}

// GetAnalysis 读取病人最近一次分析结果
// 缓存过期或不存在时返回 redis.Nil 包装错误
func (c *CacheManager) GetAnalysis(ctx context.Context, patientID string) (*models.AnalysisResult, error) {
	val, err := c.redisClient.Get(ctx, c.analysisKey(patientID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("analysis not found for patient: %s", patientID)
		}
		return nil, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis result: %w", err)
	}

	return &result, nil
}

// GetRealtime 读取病人最新读数
func (c *CacheManager) GetRealtime(ctx context.Context, patientID string) (*models.Reading, error) {
	val, err := c.redisClient.Get(ctx, c.realtimeKey(patientID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("realtime data not found for patient: %s", patientID)
		}
		return nil, fmt.Errorf("failed to get realtime cache: %w", err)
	}

	var reading models.Reading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reading: %w", err)
	}

	return &reading, nil
}
