package analysis

import (
	"vitalwatch/internal/models"
)

// PredictEscalation 趋势外推预测报警
// 以最新干净值为起点，沿 30 分钟窗口的趋势斜率外推 30 分钟，
// 用分区表重新分类外推值；只在严重程度升级时报警
// （normal→high/critical，或 high/low→critical），避免噪声外推
// 在没有跨越有临床意义边界时制造报警疲劳
func PredictEscalation(points []VitalPoint, vital string, windowMinutes, minReadings int) *models.PredictiveAlert {
	if len(points) < minReadings {
		return nil
	}

	trend := ComputeTrend(points, vital, windowMinutes)
	if trend.SampleCount < 2 {
		return nil
	}

	latest := points[len(points)-1].Value
	currentZone, err := ClassifyZone(latest, vital)
	if err != nil {
		return nil
	}

	// 外推 30 分钟 = 0.5 小时
	predicted := latest + trend.SlopePerHour*0.5
	predictedZone, err := ClassifyZone(predicted, vital)
	if err != nil {
		// 外推出了合理域，不基于它报警
		return nil
	}

	if currentZone.Severity == models.SeverityNormal &&
		(predictedZone.Severity == models.SeverityHigh || predictedZone.Severity == models.SeverityCritical) {
		return &models.PredictiveAlert{
			Vital:          vital,
			Kind:           models.PredictiveWarning,
			Severity:       models.SeverityHigh,
			CurrentZone:    currentZone,
			PredictedZone:  predictedZone,
			PredictedValue: round1(predicted),
		}
	}

	if (currentZone.Severity == models.SeverityHigh || currentZone.Severity == models.SeverityLow) &&
		predictedZone.Severity == models.SeverityCritical {
		return &models.PredictiveAlert{
			Vital:          vital,
			Kind:           models.PredictiveCritical,
			Severity:       models.SeverityCritical,
			CurrentZone:    currentZone,
			PredictedZone:  predictedZone,
			PredictedValue: round1(predicted),
		}
	}

	return nil
}
