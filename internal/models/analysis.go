package models

import (
	"time"
)

// 严重程度等级（critical > high > moderate > normal > low 仅用于排序报警，
// 分区本身只使用 critical/high/normal/low 四级）
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityModerate = "moderate"
	SeverityNormal   = "normal"
	SeverityLow      = "low"
)

// SeverityRank 严重程度排序值（用于取最大严重程度）
func SeverityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityModerate:
		return 2
	case SeverityNormal:
		return 1
	case SeverityLow:
		return 0
	}
	return -1
}

// MaxSeverity 返回两个严重程度中较高的一个
func MaxSeverity(a, b string) string {
	if SeverityRank(b) > SeverityRank(a) {
		return b
	}
	return a
}

// Zone 临床分区分类结果
type Zone struct {
	Vital    string  `json:"vital"`
	Key      string  `json:"zone"`     // 如 "tachycardia"
	Severity string  `json:"severity"` // critical | high | normal | low
	RangeMin float64 `json:"range_min"`
	RangeMax float64 `json:"range_max"`
}

// Baseline 病人某项体征的统计基线（基于干净样本的滚动窗口）
type Baseline struct {
	Vital       string  `json:"vital"`
	Median      float64 `json:"median"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"std_dev"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	SampleCount int     `json:"sample_count"`
}

// Deviation 当前值相对基线的偏离
type Deviation struct {
	Absolute     float64 `json:"absolute"` // value - median
	Percent      float64 `json:"percent"`
	WithinNormal bool    `json:"within_normal"` // |deviation| <= 2*stdDev
}

// 趋势方向与幅度
const (
	TrendStable     = "stable"
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"

	TrendMagnitudeNormal   = "normal"
	TrendMagnitudeModerate = "moderate"
	TrendMagnitudeRapid    = "rapid"
)

// Trend 短期线性趋势（每次分析重新计算，不持久化）
type Trend struct {
	Vital         string  `json:"vital"`
	SlopePerHour  float64 `json:"slope_per_hour"`
	Direction     string  `json:"direction"` // stable | increasing | decreasing
	Magnitude     string  `json:"magnitude"` // normal | moderate | rapid
	WindowMinutes int     `json:"window_minutes"`
	SampleCount   int     `json:"sample_count"` // <2 时 Direction 固定为 stable
}

// 综合风险等级
const (
	RiskLow       = "Low"
	RiskLowMedium = "Low-Medium"
	RiskMedium    = "Medium"
	RiskHigh      = "High"
)

// RiskScore NEWS 风格综合风险评分（每次分析重新计算）
type RiskScore struct {
	Score             int    `json:"score"` // 0-9 序数
	Level             string `json:"level"` // Low | Low-Medium | Medium | High
	RecommendedAction string `json:"recommended_action"`
}

// 跨体征关联模式
const (
	CorrelationCriticalMulti  = "critical_multi"
	CorrelationDistress       = "distress_pattern"
	CorrelationElevatedVitals = "elevated_vitals"
	CorrelationLowActivity    = "low_activity"
	CorrelationNormal         = "normal"
	CorrelationMixed          = "mixed"
)

// Correlation 跨体征关联判定
type Correlation struct {
	Pattern  string `json:"pattern"`
	Severity string `json:"severity"`
}

// 预测报警类型
const (
	PredictiveWarning  = "predictive_warning"
	PredictiveCritical = "predictive_critical"
)

// PredictiveAlert 趋势外推触发的预测报警
type PredictiveAlert struct {
	Vital          string  `json:"vital"`
	Kind           string  `json:"kind"` // predictive_warning | predictive_critical
	Severity       string  `json:"severity"`
	CurrentZone    Zone    `json:"current_zone"`
	PredictedZone  Zone    `json:"predicted_zone"`
	PredictedValue float64 `json:"predicted_value"`
}

// 数据质量等级
const (
	QualityNoData   = "no_data"
	QualityStale    = "stale"
	QualityPoor     = "poor"
	QualityModerate = "moderate"
	QualityGood     = "good"
)

// DataQuality 数据流可靠性判定（过期优先于异常率）
type DataQuality struct {
	Quality     string `json:"quality"`     // no_data | stale | poor | moderate | good
	Reliability int    `json:"reliability"` // 百分比 0-95
}

// AnalysisResult 单条读数的完整分析结果（只读模型，供展示层消费）
type AnalysisResult struct {
	PatientID   string                `json:"patient_id"`
	Reading     Reading               `json:"reading"`
	Flags       []AnomalyFlag         `json:"flags,omitempty"` // 本条读数携带的异常标记
	Zones       map[string]Zone       `json:"zones"`
	Baselines   map[string]*Baseline  `json:"baselines"`
	Deviations  map[string]*Deviation `json:"deviations"`
	Trends      map[string]Trend      `json:"trends"`
	Risk        RiskScore             `json:"risk"`
	Correlation Correlation           `json:"correlation"`
	Predictive  []PredictiveAlert     `json:"predictive,omitempty"`
	Quality     DataQuality           `json:"quality"`
	AnalyzedAt  time.Time             `json:"analyzed_at"`
}
