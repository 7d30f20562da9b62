package models

import (
	"time"
)

// 生命体征类型标识
const (
	VitalHeartRate       = "heart_rate"
	VitalRespirationRate = "respiration_rate"
	VitalMovement        = "movement"
)

// Reading 规范化后的单条生理读数（摄入后不可变）
type Reading struct {
	PatientID       string    `json:"patient_id"`
	Timestamp       time.Time `json:"timestamp"`
	HeartRate       float64   `json:"heart_rate"`
	RespirationRate float64   `json:"respiration_rate"`
	Movement        int       `json:"movement"` // 活动级别（序数 0..5+）
	Presence        bool      `json:"presence"`
}

// Vital 按类型取读数中的数值
func (r Reading) Vital(vital string) float64 {
	switch vital {
	case VitalHeartRate:
		return r.HeartRate
	case VitalRespirationRate:
		return r.RespirationRate
	case VitalMovement:
		return float64(r.Movement)
	}
	return 0
}

// 异常标记类型
const (
	AnomalyImpossibleValue = "impossible_value"
	AnomalySuddenChange    = "sudden_change"
)

// AnomalyFlag 异常标记（附着在读数上，不从原始序列中删除读数）
type AnomalyFlag struct {
	ReadingIndex  int      `json:"reading_index"`
	Kind          string   `json:"kind"` // impossible_value | sudden_change
	Vital         string   `json:"vital"`
	Value         float64  `json:"value"`
	PreviousValue *float64 `json:"previous_value,omitempty"`
	Change        float64  `json:"change,omitempty"`
	Message       string   `json:"message"`
}
