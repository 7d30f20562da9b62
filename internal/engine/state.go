package engine

import (
	"sync"
	"time"

	"vitalwatch/internal/models"
)

// PatientState 单个病人的滑动读数窗口
// 只由该病人的 worker goroutine 访问，窗口本身不加锁；
// 快照方法返回副本，调用方可以安全持有
type PatientState struct {
	PatientID string
	readings  []models.Reading
}

// NewPatientState 创建病人状态
func NewPatientState(patientID string) *PatientState {
	return &PatientState{PatientID: patientID}
}

// Append 按时间序追加读数并裁剪窗口
// 返回 false 表示读数被拒绝：时间戳不晚于当前最新读数
// （乱序或重复投递，首次写入者胜出）
func (s *PatientState) Append(reading models.Reading, maxReadings int, maxAge time.Duration) bool {
	if n := len(s.readings); n > 0 {
		if !reading.Timestamp.After(s.readings[n-1].Timestamp) {
			return false
		}
	}

	s.readings = append(s.readings, reading)

	// 1. 按条数裁剪
	if len(s.readings) > maxReadings {
		s.readings = s.readings[len(s.readings)-maxReadings:]
	}

	// 2. 按时效裁剪：丢弃早于最新读数 maxAge 的旧读数
	cutoff := reading.Timestamp.Add(-maxAge)
	trim := 0
	for trim < len(s.readings) && s.readings[trim].Timestamp.Before(cutoff) {
		trim++
	}
	if trim > 0 {
		s.readings = append(s.readings[:0], s.readings[trim:]...)
	}

	return true
}

// Snapshot 返回窗口读数的副本
func (s *PatientState) Snapshot() []models.Reading {
	out := make([]models.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

// Len 当前窗口内读数条数
func (s *PatientState) Len() int {
	return len(s.readings)
}

// Latest 最新读数；窗口为空时返回零值和 false
func (s *PatientState) Latest() (models.Reading, bool) {
	if len(s.readings) == 0 {
		return models.Reading{}, false
	}
	return s.readings[len(s.readings)-1], true
}

// StateStore 病人状态表（patient_id → PatientState）
// worker 调度层在取状态时持锁，状态本身交给对应 worker 串行使用
type StateStore struct {
	mu     sync.Mutex
	states map[string]*PatientState
}

// NewStateStore 创建状态表
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]*PatientState)}
}

// Get 获取或创建病人状态
func (ss *StateStore) Get(patientID string) *PatientState {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	state, ok := ss.states[patientID]
	if !ok {
		state = NewPatientState(patientID)
		ss.states[patientID] = state
	}
	return state
}

// Patients 当前已跟踪的病人 ID 列表
func (ss *StateStore) Patients() []string {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	ids := make([]string, 0, len(ss.states))
	for id := range ss.states {
		ids = append(ids, id)
	}
	return ids
}
