package models

import (
	"encoding/json"
	"time"
)

// 报警触发类型（幂等键的一部分）
const (
	TriggerZone       = "zone"
	TriggerRiskScore  = "risk_score"
	TriggerPredictive = "predictive"
)

// 报警状态
const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
)

// Alert 报警记录（对应 alerts 表）
// 由 Dispatcher 创建；read/acknowledge 只允许下游操作修改
type Alert struct {
	AlertID        string     `json:"alert_id" db:"alert_id"`
	PatientID      string     `json:"patient_id" db:"patient_id"`
	Severity       string     `json:"severity" db:"severity"`       // 触发信号中的最大严重程度
	TriggerKinds   string     `json:"trigger_kinds" db:"trigger_kinds"` // 逗号分隔，如 "zone,risk_score"
	Parameters     string     `json:"parameters" db:"parameters"`   // 逗号分隔的体征名
	Reason         string     `json:"reason" db:"reason"`           // 规范键，如 "heart_rate:critical_high"，展示层负责渲染
	TriggerData    json.RawMessage `json:"trigger_data" db:"trigger_data"` // 触发读数快照（JSONB）
	ReadingTime    time.Time  `json:"reading_time" db:"reading_time"`
	Status         string     `json:"status" db:"status"` // active | acknowledged
	Read           bool       `json:"read" db:"read"`
	Acknowledged   bool       `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
