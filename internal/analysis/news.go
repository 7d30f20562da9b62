package analysis

import (
	"vitalwatch/internal/models"
)

// 各风险等级的规范处置动作键（展示层负责渲染成面向用户的文案）
const (
	ActionRoutineMonitoring = "continue_routine_monitoring"
	ActionIncreaseFrequency = "increase_monitoring_frequency"
	ActionUrgentReview      = "urgent_clinical_review"
	ActionImmediateResponse = "immediate_intervention"
)

// ScoreRisk 计算 NEWS 风格的综合风险评分
// 固定断点的加性评分，刻意保持粗粒度和单调，便于临床审查追溯评分变化原因
func ScoreRisk(heartRate, respirationRate float64) models.RiskScore {
	score := 0

	// 呼吸率子评分
	switch {
	case respirationRate <= 8:
		score += 3
	case respirationRate <= 11:
		score += 1
	case respirationRate <= 20:
		score += 0
	case respirationRate <= 24:
		score += 2
	default:
		score += 3
	}

	// 心率子评分
	switch {
	case heartRate <= 40:
		score += 3
	case heartRate <= 50:
		score += 1
	case heartRate <= 90:
		score += 0
	case heartRate <= 110:
		score += 1
	case heartRate <= 130:
		score += 2
	default:
		score += 3
	}

	var level, action string
	switch {
	case score == 0:
		level = models.RiskLow
		action = ActionRoutineMonitoring
	case score <= 4:
		level = models.RiskLowMedium
		action = ActionIncreaseFrequency
	case score <= 6:
		level = models.RiskMedium
		action = ActionUrgentReview
	default:
		level = models.RiskHigh
		action = ActionImmediateResponse
	}

	return models.RiskScore{
		Score:             score,
		Level:             level,
		RecommendedAction: action,
	}
}

// Correlate 跨体征关联判定
// 单项体征视角会漏掉的组合模式：两项同时危急、高体征加低活动的窘迫模式、
// 伴随较高活动的体征升高（多半是体力活动）、低体征低活动（多半是休息或镇静）
func Correlate(hrZone, rrZone models.Zone, movement int) models.Correlation {
	hrSev := hrZone.Severity
	rrSev := rrZone.Severity

	switch {
	case hrSev == models.SeverityCritical && rrSev == models.SeverityCritical:
		return models.Correlation{Pattern: models.CorrelationCriticalMulti, Severity: models.SeverityCritical}

	case (hrSev == models.SeverityHigh || hrSev == models.SeverityCritical) &&
		(rrSev == models.SeverityHigh || rrSev == models.SeverityCritical) &&
		movement < 2:
		return models.Correlation{Pattern: models.CorrelationDistress, Severity: models.SeverityHigh}

	case hrSev == models.SeverityHigh && rrSev == models.SeverityHigh:
		return models.Correlation{Pattern: models.CorrelationElevatedVitals, Severity: models.SeverityModerate}

	case hrSev == models.SeverityLow && rrSev == models.SeverityLow && movement < 1:
		return models.Correlation{Pattern: models.CorrelationLowActivity, Severity: models.SeverityModerate}

	case hrSev == models.SeverityNormal && rrSev == models.SeverityNormal:
		return models.Correlation{Pattern: models.CorrelationNormal, Severity: models.SeverityNormal}
	}

	// 未命中具名模式的混合组合：任一体征危急则判 high，否则 moderate
	severity := models.SeverityModerate
	if hrSev == models.SeverityCritical || rrSev == models.SeverityCritical {
		severity = models.SeverityHigh
	}
	return models.Correlation{Pattern: models.CorrelationMixed, Severity: severity}
}
