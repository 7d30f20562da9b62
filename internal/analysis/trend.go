package analysis

import (
	"math"
	"time"

	"vitalwatch/internal/models"
)

// 趋势分类阈值（单位/小时）
const (
	trendStableThreshold = 1.0
	trendRapidThreshold  = 5.0
)

// ComputeTrend 计算某项体征在尾部时间窗口内的线性趋势
// 最小二乘斜率换算为单位/小时；窗口内不足 2 个点时返回
// "stable / 数据不足" 而不是错误——稀疏历史是常态，不能让管道崩溃
func ComputeTrend(points []VitalPoint, vital string, windowMinutes int) models.Trend {
	trend := models.Trend{
		Vital:         vital,
		Direction:     models.TrendStable,
		Magnitude:     models.TrendMagnitudeNormal,
		WindowMinutes: windowMinutes,
	}

	if len(points) < 2 {
		trend.SampleCount = len(points)
		return trend
	}

	// 截取窗口：以最新点为锚，向前 windowMinutes
	windowStart := points[len(points)-1].Timestamp.Add(-time.Duration(windowMinutes) * time.Minute)
	recent := points
	for i, p := range points {
		if !p.Timestamp.Before(windowStart) {
			recent = points[i:]
			break
		}
	}
	trend.SampleCount = len(recent)
	if len(recent) < 2 {
		return trend
	}

	// 两段式（去均值）最小二乘，避免朴素乘积和形式的消去误差；
	// 横轴用相对窗口起点的秒数
	n := float64(len(recent))
	var sumX, sumY float64
	xs := make([]float64, len(recent))
	for i, p := range recent {
		xs[i] = p.Timestamp.Sub(windowStart).Seconds()
		sumX += xs[i]
		sumY += p.Value
	}
	meanX := sumX / n
	meanY := sumY / n

	var num, den float64
	for i, p := range recent {
		dx := xs[i] - meanX
		num += dx * (p.Value - meanY)
		den += dx * dx
	}
	if den == 0 {
		// 所有样本时间戳相同，斜率无定义
		return trend
	}

	slopePerSecond := num / den
	slopePerHour := slopePerSecond * 3600
	trend.SlopePerHour = slopePerHour

	switch {
	case math.Abs(slopePerHour) < trendStableThreshold:
		trend.Direction = models.TrendStable
	case slopePerHour > 0:
		trend.Direction = models.TrendIncreasing
	default:
		trend.Direction = models.TrendDecreasing
	}

	if trend.Direction != models.TrendStable {
		if math.Abs(slopePerHour) > trendRapidThreshold {
			trend.Magnitude = models.TrendMagnitudeRapid
		} else {
			trend.Magnitude = models.TrendMagnitudeModerate
		}
	}

	return trend
}
