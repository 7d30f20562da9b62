package engine

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/analysis"
	"vitalwatch/internal/config"
	"vitalwatch/internal/models"
)

// ErrStaleReading 读数时间戳不晚于窗口内最新读数，被拒绝
var ErrStaleReading = errors.New("reading is not newer than current window")

// Engine 分析引擎
// 对单个病人的读数窗口执行完整分析管道：
// 异常过滤 → 基线/偏差 → 趋势 → 分区 → 综合风险 → 关联模式 → 预测 → 数据质量
type Engine struct {
	config *config.Config
	logger *zap.Logger
}

// NewEngine 创建分析引擎
func NewEngine(cfg *config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		config: cfg,
		logger: logger,
	}
}

// Process 将读数并入病人窗口并重新分析
// 乱序或重复读数返回 ErrStaleReading，窗口不变
// 必须在该病人的 worker goroutine 内串行调用
func (e *Engine) Process(state *PatientState, reading models.Reading, now time.Time) (*models.AnalysisResult, error) {
	maxAge := time.Duration(e.config.Engine.WindowMaxAgeMinutes) * time.Minute
	if !state.Append(reading, e.config.Engine.WindowMaxReadings, maxAge) {
		return nil, ErrStaleReading
	}

	result := e.Analyze(state.PatientID, state.Snapshot(), now)

	e.logger.Debug("Analysis completed",
		zap.String("patient_id", state.PatientID),
		zap.Int("window_size", state.Len()),
		zap.Int("risk_score", result.Risk.Score),
		zap.String("quality", result.Quality.Quality),
	)

	return result, nil
}

// Analyze 对读数窗口执行一次完整分析
// readings 必须按时间升序且属于同一病人；最后一条视为当前读数
func (e *Engine) Analyze(patientID string, readings []models.Reading, now time.Time) *models.AnalysisResult {
	latest := readings[len(readings)-1]

	result := &models.AnalysisResult{
		PatientID:  patientID,
		Reading:    latest,
		Zones:      make(map[string]models.Zone),
		Baselines:  make(map[string]*models.Baseline),
		Deviations: make(map[string]*models.Deviation),
		Trends:     make(map[string]models.Trend),
		AnalyzedAt: now,
	}

	// 1. 异常过滤：标记不可能值和突变，不丢弃原始读数
	flags := analysis.DetectAnomalies(readings)
	result.Flags = analysis.FlagsForReading(flags, len(readings)-1)

	// 2. 逐体征：干净序列 → 基线 → 偏差 → 趋势 → 预测
	for _, vital := range []string{models.VitalHeartRate, models.VitalRespirationRate} {
		points := analysis.CleanPoints(readings, flags, vital)

		baseline := analysis.ComputeBaseline(points, vital)
		result.Baselines[vital] = baseline
		result.Deviations[vital] = analysis.DeviationFrom(latest.Vital(vital), baseline)

		result.Trends[vital] = analysis.ComputeTrend(points, vital, e.config.Engine.TrendWindowMinutes)

		if alert := analysis.PredictEscalation(points, vital,
			e.config.Engine.PredictiveWindowMinutes,
			e.config.Engine.PredictiveMinReadings,
		); alert != nil {
			result.Predictive = append(result.Predictive, *alert)
		}
	}

	// 3. 分区分类：对当前原始读数分类，异常标记不影响分区——
	// 真实的危急值也会落在异常边界附近，分区必须报告它
	for _, vital := range []string{models.VitalHeartRate, models.VitalRespirationRate, models.VitalMovement} {
		zone, err := analysis.ClassifyZone(latest.Vital(vital), vital)
		if err != nil {
			e.logger.Warn("Failed to classify zone",
				zap.String("patient_id", patientID),
				zap.String("vital", vital),
				zap.Float64("value", latest.Vital(vital)),
				zap.Error(err),
			)
			continue
		}
		result.Zones[vital] = zone
	}

	// 4. 综合风险评分 + 跨体征关联
	result.Risk = analysis.ScoreRisk(latest.HeartRate, latest.RespirationRate)
	hrZone, hrOK := result.Zones[models.VitalHeartRate]
	rrZone, rrOK := result.Zones[models.VitalRespirationRate]
	if hrOK && rrOK {
		result.Correlation = analysis.Correlate(hrZone, rrZone, latest.Movement)
	} else {
		result.Correlation = models.Correlation{
			Pattern:  models.CorrelationMixed,
			Severity: models.SeverityModerate,
		}
	}

	// 5. 数据质量评估
	result.Quality = analysis.AssessQuality(readings, latest.Timestamp, now,
		e.config.Engine.StalenessMinutes,
		e.config.Engine.QualityWindowReadings,
	)

	return result
}
