package config

import (
	"fmt"
	"os"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置（床旁设备摄入源）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // 如 "vitals/+/data"
}

// Config 监护引擎服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 分析引擎配置
	Engine struct {
		WindowMaxReadings       int // 每病人滑动窗口最大读数条数，默认 50
		WindowMaxAgeMinutes     int // 窗口最大时长（分钟），默认 240
		TrendWindowMinutes      int // 趋势窗口（分钟），默认 60
		PredictiveWindowMinutes int // 预测用趋势窗口（分钟），默认 30
		PredictiveMinReadings   int // 预测所需最少读数，默认 10
		StalenessMinutes        int // 数据过期阈值（分钟），默认 10
		QualityWindowReadings   int // 数据质量检查的尾部读数条数，默认 20
		MaxConcurrent           int // 跨病人并发分析上限，默认 16
	}

	// 摄入配置
	Ingest struct {
		Stream        string // 读数输入 Stream，如 "vitalwatch:readings"
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int64
	}

	// 报警配置
	Alerts struct {
		Stream        string // 报警输出 Stream
		ChannelPrefix string // 订阅房间频道前缀，如 "vitalwatch:alerts:"
		WebhookURL    string // 外部通知服务 webhook（为空则禁用）
		SeenLimit     int    // 每病人幂等去重键上限，默认 256
	}

	// Redis 缓存配置（供展示层读取的只读模型）
	Cache struct {
		KeyPrefix      string // 如 "vitalwatch:patient:"
		RealtimeSuffix string // 如 ":realtime"
		AnalysisSuffix string // 如 ":analysis"
		TTLSeconds     int    // 默认 120
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（环境变量覆盖默认值）
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "vitalwatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "vitalwatch")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "vitals/+/data")

	cfg.Engine.WindowMaxReadings = getEnvInt("ENGINE_WINDOW_MAX_READINGS", 50)
	cfg.Engine.WindowMaxAgeMinutes = getEnvInt("ENGINE_WINDOW_MAX_AGE_MINUTES", 240)
	cfg.Engine.TrendWindowMinutes = getEnvInt("ENGINE_TREND_WINDOW_MINUTES", 60)
	cfg.Engine.PredictiveWindowMinutes = getEnvInt("ENGINE_PREDICTIVE_WINDOW_MINUTES", 30)
	cfg.Engine.PredictiveMinReadings = getEnvInt("ENGINE_PREDICTIVE_MIN_READINGS", 10)
	cfg.Engine.StalenessMinutes = getEnvInt("ENGINE_STALENESS_MINUTES", 10)
	cfg.Engine.QualityWindowReadings = getEnvInt("ENGINE_QUALITY_WINDOW_READINGS", 20)
	cfg.Engine.MaxConcurrent = getEnvInt("ENGINE_MAX_CONCURRENT", 16)

	cfg.Ingest.Stream = getEnv("INGEST_STREAM", "vitalwatch:readings")
	cfg.Ingest.ConsumerGroup = getEnv("INGEST_CONSUMER_GROUP", "vitalwatch-engine")
	cfg.Ingest.ConsumerName = getEnv("INGEST_CONSUMER_NAME", "vitalwatch-engine-1")
	cfg.Ingest.BatchSize = int64(getEnvInt("INGEST_BATCH_SIZE", 10))

	cfg.Alerts.Stream = getEnv("ALERTS_STREAM", "vitalwatch:alerts")
	cfg.Alerts.ChannelPrefix = getEnv("ALERTS_CHANNEL_PREFIX", "vitalwatch:alerts:")
	cfg.Alerts.WebhookURL = getEnv("ALERTS_WEBHOOK_URL", "")
	cfg.Alerts.SeenLimit = getEnvInt("ALERTS_SEEN_LIMIT", 256)

	cfg.Cache.KeyPrefix = getEnv("CACHE_KEY_PREFIX", "vitalwatch:patient:")
	cfg.Cache.RealtimeSuffix = ":realtime"
	cfg.Cache.AnalysisSuffix = ":analysis"
	cfg.Cache.TTLSeconds = getEnvInt("CACHE_TTL_SECONDS", 120)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var n int
		if _, err := fmt.Sscanf(value, "%d", &n); err == nil {
			return n
		}
	}
	return defaultValue
}
