package analysis

import (
	"time"

	"vitalwatch/internal/models"
)

// AssessQuality 判定病人数据流的可靠性
// 过期检查优先于异常率——断开的传感器比有噪声的传感器更糟；
// 未过期时按尾部 qualityWindow 条读数的异常读数占比分级
func AssessQuality(readings []models.Reading, latest time.Time, now time.Time, stalenessMinutes, qualityWindow int) models.DataQuality {
	if len(readings) == 0 {
		return models.DataQuality{Quality: models.QualityNoData, Reliability: 0}
	}

	if now.Sub(latest) > time.Duration(stalenessMinutes)*time.Minute {
		return models.DataQuality{Quality: models.QualityStale, Reliability: 30}
	}

	tail := readings
	if len(tail) > qualityWindow {
		tail = tail[len(tail)-qualityWindow:]
	}

	flags := DetectAnomalies(tail)
	anomalyRate := float64(FlaggedReadingCount(flags)) / float64(len(tail)) * 100

	switch {
	case anomalyRate > 20:
		return models.DataQuality{Quality: models.QualityPoor, Reliability: 50}
	case anomalyRate > 5:
		return models.DataQuality{Quality: models.QualityModerate, Reliability: 75}
	}

	return models.DataQuality{Quality: models.QualityGood, Reliability: 95}
}
