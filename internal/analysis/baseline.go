package analysis

import (
	"math"
	"sort"

	"vitalwatch/internal/models"
)

// ComputeBaseline 基于干净样本序列计算病人自身的统计基线
// 中位数比均值对离群点更稳健，适合重尾的生理传感器数据；
// 空序列返回 nil（"no baseline"），不产生退化统计量
func ComputeBaseline(points []VitalPoint, vital string) *models.Baseline {
	if len(points) == 0 {
		return nil
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	var median float64
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		median = sorted[mid]
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	// 总体标准差
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(values)))

	return &models.Baseline{
		Vital:       vital,
		Median:      round1(median),
		Mean:        round1(mean),
		StdDev:      round1(stdDev),
		Min:         sorted[0],
		Max:         sorted[len(sorted)-1],
		SampleCount: len(values),
	}
}

// DeviationFrom 当前值相对基线的偏离
// 偏离 = value - median；"正常范围内" 指 |偏离| <= 2*stdDev
func DeviationFrom(value float64, baseline *models.Baseline) *models.Deviation {
	if baseline == nil {
		return nil
	}

	deviation := value - baseline.Median
	var percent float64
	if baseline.Median != 0 {
		percent = deviation / baseline.Median * 100
	}

	return &models.Deviation{
		Absolute:     round1(deviation),
		Percent:      round1(percent),
		WithinNormal: math.Abs(deviation) <= baseline.StdDev*2,
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
