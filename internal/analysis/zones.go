package analysis

import (
	"fmt"

	"vitalwatch/internal/models"
)

// zoneRange 分区表中的一行（有序、互不重叠、覆盖整个合理域）
// 边界开闭由 minOpen/maxOpen 控制：minOpen 表示 (min, …，maxOpen 表示 …, max)
type zoneRange struct {
	key      string
	severity string
	min      float64
	max      float64
	minOpen  bool
	maxOpen  bool
}

// 心率分区表（bpm）
var heartRateZones = []zoneRange{
	{key: "critical_low", severity: models.SeverityCritical, min: 0, max: 40, maxOpen: true},
	{key: "bradycardia", severity: models.SeverityLow, min: 40, max: 60, maxOpen: true},
	{key: "normal", severity: models.SeverityNormal, min: 60, max: 100},
	{key: "tachycardia", severity: models.SeverityHigh, min: 100, max: 120, minOpen: true},
	{key: "critical_high", severity: models.SeverityCritical, min: 120, max: 300, minOpen: true},
}

// 呼吸率分区表（br/min）
var respirationRateZones = []zoneRange{
	{key: "critical_low", severity: models.SeverityCritical, min: 0, max: 8},
	{key: "bradypnea", severity: models.SeverityLow, min: 8, max: 12, minOpen: true, maxOpen: true},
	{key: "normal", severity: models.SeverityNormal, min: 12, max: 20},
	{key: "tachypnea", severity: models.SeverityHigh, min: 20, max: 25, minOpen: true},
	{key: "critical_high", severity: models.SeverityCritical, min: 25, max: 60, minOpen: true},
}

// 活动级别分区表（序数桶 0,1,2,3,4,5+）
var movementZones = []zoneRange{
	{key: "none", severity: models.SeverityLow, min: 0, max: 1, maxOpen: true},
	{key: "minimal", severity: models.SeverityLow, min: 1, max: 2, maxOpen: true},
	{key: "low", severity: models.SeverityNormal, min: 2, max: 3, maxOpen: true},
	{key: "moderate", severity: models.SeverityNormal, min: 3, max: 4, maxOpen: true},
	{key: "active", severity: models.SeverityNormal, min: 4, max: 5, maxOpen: true},
	{key: "very_active", severity: models.SeverityNormal, min: 5, max: 1e9},
}

func (z zoneRange) contains(value float64) bool {
	if z.minOpen {
		if value <= z.min {
			return false
		}
	} else if value < z.min {
		return false
	}
	if z.maxOpen {
		if value >= z.max {
			return false
		}
	} else if value > z.max {
		return false
	}
	return true
}

// ClassifyZone 将体征值映射到临床分区
// 纯函数：第一个（也是唯一）包含该值的区间命中；校验后的输入域不会落在所有区间之外，
// 落在域外视为分类器错误
func ClassifyZone(value float64, vital string) (models.Zone, error) {
	var table []zoneRange
	switch vital {
	case models.VitalHeartRate:
		table = heartRateZones
	case models.VitalRespirationRate:
		table = respirationRateZones
	case models.VitalMovement:
		table = movementZones
	default:
		return models.Zone{}, fmt.Errorf("unknown vital: %s", vital)
	}

	for _, z := range table {
		if z.contains(value) {
			return models.Zone{
				Vital:    vital,
				Key:      z.key,
				Severity: z.severity,
				RangeMin: z.min,
				RangeMax: z.max,
			}, nil
		}
	}

	return models.Zone{}, fmt.Errorf("value %.1f outside all zones for vital %s", value, vital)
}
