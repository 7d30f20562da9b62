package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"vitalwatch/internal/models"
)

// ErrValidation 结构性校验失败（缺失或非数值的必填体征）
// 调用方必须整条拒绝样本，不做部分摄入
var ErrValidation = errors.New("validation failed")

// Normalize 校验并规范化一条原始读数
// 约束：
//   - heart_rate 和 respiration_rate 必须存在且为数值
//   - movement/presence 缺失时默认 0/false
//   - timestamp 缺失时默认摄入时间 now
func Normalize(patientID string, raw map[string]interface{}, now time.Time) (models.Reading, error) {
	if patientID == "" {
		return models.Reading{}, fmt.Errorf("%w: patient_id is required", ErrValidation)
	}

	heartRate, ok := numericField(raw, "heart_rate", "heartRate")
	if !ok {
		return models.Reading{}, fmt.Errorf("%w: heart_rate is required and must be numeric", ErrValidation)
	}

	respirationRate, ok := numericField(raw, "respiration_rate", "respirationRate")
	if !ok {
		return models.Reading{}, fmt.Errorf("%w: respiration_rate is required and must be numeric", ErrValidation)
	}

	reading := models.Reading{
		PatientID:       patientID,
		Timestamp:       now,
		HeartRate:       heartRate,
		RespirationRate: respirationRate,
	}

	if movement, ok := numericField(raw, "movement", "movement"); ok {
		reading.Movement = int(movement)
	}
	if presence, ok := boolField(raw, "presence"); ok {
		reading.Presence = presence
	}
	if ts, ok := timeField(raw, "timestamp"); ok {
		reading.Timestamp = ts
	}

	return reading, nil
}

// numericField 按主键名和兼容键名取数值字段
func numericField(raw map[string]interface{}, key, altKey string) (float64, bool) {
	v, ok := raw[key]
	if !ok {
		v, ok = raw[altKey]
	}
	if !ok || v == nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func boolField(raw map[string]interface{}, key string) (bool, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return false, false
	}
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		return val == "true" || val == "1", true
	}
	return false, false
}

// timeField 解析时间戳字段（RFC3339 字符串或 Unix 秒/毫秒数值）
func timeField(raw map[string]interface{}, key string) (time.Time, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return time.Time{}, false
	}

	switch val := v.(type) {
	case string:
		ts, err := time.Parse(time.RFC3339, val)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	case float64:
		return unixToTime(int64(val)), true
	case int64:
		return unixToTime(val), true
	case int:
		return unixToTime(int64(val)), true
	}
	return time.Time{}, false
}

// unixToTime 区分秒级和毫秒级时间戳
func unixToTime(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}
