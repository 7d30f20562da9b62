package consumer

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/dispatcher"
	"vitalwatch/internal/engine"
	"vitalwatch/internal/models"
	"vitalwatch/internal/normalizer"
	"vitalwatch/internal/repository"
)

// Processor 摄入处理器，各摄入源（Streams、MQTT）共用的处理链：
// 规范化 → 持久化读数 → 病人 worker 分析 → 更新缓存 → 报警分发
type Processor struct {
	pool         *engine.WorkerPool
	readingsRepo *repository.ReadingsRepository
	dispatcher   *dispatcher.Dispatcher
	cache        *CacheManager
	logger       *zap.Logger
}

// NewProcessor 创建摄入处理器
func NewProcessor(
	pool *engine.WorkerPool,
	readingsRepo *repository.ReadingsRepository,
	disp *dispatcher.Dispatcher,
	cache *CacheManager,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		pool:         pool,
		readingsRepo: readingsRepo,
		dispatcher:   disp,
		cache:        cache,
		logger:       logger,
	}
}

// HandleRaw 处理一条原始读数
// patientID 为空时从 raw["patient_id"] 取；校验失败整条拒绝
// 乱序/重复读数丢弃但不算错误（上游重投是常态）
func (p *Processor) HandleRaw(ctx context.Context, patientID string, raw map[string]interface{}) (*models.AnalysisResult, error) {
	if patientID == "" {
		if id, ok := raw["patient_id"].(string); ok {
			patientID = id
		}
	}

	now := time.Now()
	reading, err := normalizer.Normalize(patientID, raw, now)
	if err != nil {
		return nil, err
	}

	// 1. 持久化读数：失败只记日志，分析不依赖数据库写入成功
	if p.readingsRepo != nil {
		if err := p.readingsRepo.CreateReading(ctx, &reading); err != nil {
			p.logger.Error("Failed to persist reading",
				zap.String("patient_id", reading.PatientID),
				zap.Error(err),
			)
		}
	}

	// 2. 交给病人 worker 串行分析
	result, err := p.pool.Process(ctx, reading, now)
	if err != nil {
		if errors.Is(err, engine.ErrStaleReading) {
			p.logger.Debug("Dropped stale reading",
				zap.String("patient_id", reading.PatientID),
				zap.Time("timestamp", reading.Timestamp),
			)
			return nil, nil
		}
		return nil, err
	}

	// 3. 更新只读缓存：失败只记日志
	if p.cache != nil {
		if err := p.cache.UpdateRealtimeCache(ctx, &reading); err != nil {
			p.logger.Error("Failed to update realtime cache",
				zap.String("patient_id", reading.PatientID),
				zap.Error(err),
			)
		}
		if err := p.cache.UpdateAnalysisCache(ctx, result); err != nil {
			p.logger.Error("Failed to update analysis cache",
				zap.String("patient_id", reading.PatientID),
				zap.Error(err),
			)
		}
	}

	// 4. 报警分发
	if p.dispatcher != nil {
		if _, err := p.dispatcher.Dispatch(ctx, result); err != nil {
			p.logger.Error("Failed to dispatch alert",
				zap.String("patient_id", reading.PatientID),
				zap.Error(err),
			)
		}
	}

	return result, nil
}

// RestoreWindow 服务启动时从数据库重建病人的滑动窗口
func (p *Processor) RestoreWindow(ctx context.Context, patientID string, limit int) error {
	if p.readingsRepo == nil {
		return nil
	}

	readings, err := p.readingsRepo.GetRecentReadings(ctx, patientID, limit)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, reading := range readings {
		if _, err := p.pool.Process(ctx, reading, now); err != nil && !errors.Is(err, engine.ErrStaleReading) {
			return err
		}
	}

	p.logger.Info("Patient window restored",
		zap.String("patient_id", patientID),
		zap.Int("readings", len(readings)),
	)
	return nil
}
