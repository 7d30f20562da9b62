package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/consumer"
	"vitalwatch/internal/dispatcher"
	"vitalwatch/internal/engine"
	"vitalwatch/internal/models"
	"vitalwatch/internal/mqttx"
	"vitalwatch/internal/redisx"
	"vitalwatch/internal/repository"
)

// MonitorService 监护引擎服务（整合各层）
type MonitorService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttx.Client
	logger      *zap.Logger

	readingsRepo *repository.ReadingsRepository
	alertsRepo   *repository.AlertsRepository

	pool       *engine.WorkerPool
	dispatcher *dispatcher.Dispatcher
	cache      *consumer.CacheManager
	processor  *consumer.Processor

	streamConsumer *consumer.StreamConsumer
	mqttConsumer   *consumer.MQTTConsumer
}

// NewMonitorService 创建监护引擎服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdle)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisx.NewClient(&cfg.Redis)
	ctx := context.Background()
	if err := redisx.Ping(ctx, redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. Repository 层
	readingsRepo := repository.NewReadingsRepository(db, logger)
	alertsRepo := repository.NewAlertsRepository(db, logger)

	// 4. 分析引擎和 worker 池
	eng := engine.NewEngine(cfg, logger)
	pool := engine.NewWorkerPool(cfg, eng, engine.NewStateStore(), logger)

	// 5. 报警分发器和投递目标
	sinks := []dispatcher.Sink{
		dispatcher.NewRedisSink(cfg, redisClient, logger),
		&alertStoreSink{repo: alertsRepo},
	}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, dispatcher.NewWebhookSink(cfg.Alerts.WebhookURL, logger))
	}
	disp := dispatcher.NewDispatcher(cfg, sinks, logger)

	// 6. 摄入处理链和消费者
	cache := consumer.NewCacheManager(cfg, redisClient, logger)
	processor := consumer.NewProcessor(pool, readingsRepo, disp, cache, logger)
	streamConsumer := consumer.NewStreamConsumer(cfg, redisClient, processor, logger)

	s := &MonitorService{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		logger:         logger,
		readingsRepo:   readingsRepo,
		alertsRepo:     alertsRepo,
		pool:           pool,
		dispatcher:     disp,
		cache:          cache,
		processor:      processor,
		streamConsumer: streamConsumer,
	}

	// 7. 可选的 MQTT 摄入源
	if cfg.MQTT.Enabled {
		mqttClient, err := mqttx.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create mqtt client: %w", err)
		}
		s.mqttClient = mqttClient
		s.mqttConsumer = consumer.NewMQTTConsumer(cfg, mqttClient, processor, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞直到 ctx 取消
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting monitor service")

	// 1. 重建最近活跃病人的滑动窗口
	s.restoreWindows(ctx)

	// 2. 启动 MQTT 摄入（如启用）
	if s.mqttConsumer != nil {
		if err := s.mqttConsumer.Start(); err != nil {
			return fmt.Errorf("failed to start mqtt consumer: %w", err)
		}
	}

	// 3. 启动 Streams 消费循环（阻塞）
	return s.streamConsumer.Start(ctx)
}

// restoreWindows 服务重启后从数据库恢复内存窗口
// 恢复失败只记日志，窗口会随新读数自然重建
func (s *MonitorService) restoreWindows(ctx context.Context) {
	patients, err := s.readingsRepo.ListPatients(ctx, s.config.Engine.WindowMaxAgeMinutes)
	if err != nil {
		s.logger.Warn("Failed to list patients for window restore", zap.Error(err))
		return
	}

	for _, patientID := range patients {
		if err := s.processor.RestoreWindow(ctx, patientID, s.config.Engine.WindowMaxReadings); err != nil {
			s.logger.Warn("Failed to restore patient window",
				zap.String("patient_id", patientID),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("Patient windows restored", zap.Int("patients", len(patients)))
}

// Stop 停止服务
func (s *MonitorService) Stop() {
	s.logger.Info("Stopping monitor service")

	if s.mqttConsumer != nil {
		s.mqttConsumer.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	s.pool.Stop()

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis client", zap.Error(err))
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
}

// alertStoreSink 报警的数据库投递目标（写 alerts 表）
type alertStoreSink struct {
	repo *repository.AlertsRepository
}

func (s *alertStoreSink) Name() string {
	return "postgres"
}

func (s *alertStoreSink) Deliver(ctx context.Context, alert *models.Alert) error {
	return s.repo.CreateAlert(ctx, alert)
}
