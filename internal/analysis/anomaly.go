package analysis

import (
	"fmt"
	"math"
	"time"

	"vitalwatch/internal/models"
)

// 生理上可能的取值范围和相邻读数间允许的最大跳变
const (
	heartRatePlausibleMin        = 20.0
	heartRatePlausibleMax        = 250.0
	respirationPlausibleMin      = 4.0
	respirationPlausibleMax      = 50.0
	heartRateMaxAdjacentChange   = 40.0
	respirationMaxAdjacentChange = 10.0
)

// VitalPoint 某项体征的一个干净样本点
type VitalPoint struct {
	Timestamp time.Time
	Value     float64
}

// DetectAnomalies 检测一个病人读数窗口中的异常
// 两条独立规则（不从原始序列删除读数，仅打标记）：
//   - impossible_value：超出生理可能范围（传感器错误）
//   - sudden_change：与时间序上紧邻的前一条读数相比跳变过大
//
// 同一条读数每项体征最多各带一个标记
func DetectAnomalies(readings []models.Reading) []models.AnomalyFlag {
	var flags []models.AnomalyFlag

	for i, r := range readings {
		if r.HeartRate < heartRatePlausibleMin || r.HeartRate > heartRatePlausibleMax {
			flags = append(flags, models.AnomalyFlag{
				ReadingIndex: i,
				Kind:         models.AnomalyImpossibleValue,
				Vital:        models.VitalHeartRate,
				Value:        r.HeartRate,
				Message:      fmt.Sprintf("impossible heart rate: %.0f bpm", r.HeartRate),
			})
		}

		if r.RespirationRate < respirationPlausibleMin || r.RespirationRate > respirationPlausibleMax {
			flags = append(flags, models.AnomalyFlag{
				ReadingIndex: i,
				Kind:         models.AnomalyImpossibleValue,
				Vital:        models.VitalRespirationRate,
				Value:        r.RespirationRate,
				Message:      fmt.Sprintf("impossible respiration: %.0f br/min", r.RespirationRate),
			})
		}

		// 跳变只和紧邻的前一条比较，不和基线比较
		if i > 0 {
			prev := readings[i-1]

			if change := math.Abs(r.HeartRate - prev.HeartRate); change > heartRateMaxAdjacentChange {
				prevValue := prev.HeartRate
				flags = append(flags, models.AnomalyFlag{
					ReadingIndex:  i,
					Kind:          models.AnomalySuddenChange,
					Vital:         models.VitalHeartRate,
					Value:         r.HeartRate,
					PreviousValue: &prevValue,
					Change:        change,
					Message:       fmt.Sprintf("sudden heart rate change: %.0f bpm in one reading", change),
				})
			}

			if change := math.Abs(r.RespirationRate - prev.RespirationRate); change > respirationMaxAdjacentChange {
				prevValue := prev.RespirationRate
				flags = append(flags, models.AnomalyFlag{
					ReadingIndex:  i,
					Kind:          models.AnomalySuddenChange,
					Vital:         models.VitalRespirationRate,
					Value:         r.RespirationRate,
					PreviousValue: &prevValue,
					Change:        change,
					Message:       fmt.Sprintf("sudden respiration change: %.0f br/min in one reading", change),
				})
			}
		}
	}

	return flags
}

// FlagsForReading 取某条读数（按下标）携带的标记
func FlagsForReading(flags []models.AnomalyFlag, index int) []models.AnomalyFlag {
	var out []models.AnomalyFlag
	for _, f := range flags {
		if f.ReadingIndex == index {
			out = append(out, f)
		}
	}
	return out
}

// CleanPoints 取某项体征的干净样本序列
// 排除按体征粒度进行：心率异常不使同一条读数的呼吸率样本失效
func CleanPoints(readings []models.Reading, flags []models.AnomalyFlag, vital string) []VitalPoint {
	flagged := make(map[int]bool)
	for _, f := range flags {
		if f.Vital == vital {
			flagged[f.ReadingIndex] = true
		}
	}

	points := make([]VitalPoint, 0, len(readings))
	for i, r := range readings {
		if flagged[i] {
			continue
		}
		value := r.Vital(vital)
		if value <= 0 {
			continue
		}
		points = append(points, VitalPoint{Timestamp: r.Timestamp, Value: value})
	}

	return points
}

// FlaggedReadingCount 统计带任意标记的读数条数（用于数据质量的异常率）
func FlaggedReadingCount(flags []models.AnomalyFlag) int {
	seen := make(map[int]bool)
	for _, f := range flags {
		seen[f.ReadingIndex] = true
	}
	return len(seen)
}
