package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vitalwatch/internal/config"
	"vitalwatch/internal/models"
)

// Sink 报警投递目标（Redis 发布、webhook 等）
type Sink interface {
	Name() string
	Deliver(ctx context.Context, alert *models.Alert) error
}

// trigger 一个报警触发信号
type trigger struct {
	kind     string // zone | risk_score | predictive
	severity string
	vital    string
	reason   string // 规范键，如 "heart_rate:critical_high"
}

// Dispatcher 报警分发器
// 根据分析结果判定是否报警，构建报警记录并扇出到各投递目标；
// 幂等去重以 (读数时间戳, 触发类型) 为键，标记先于投递——
// 投递失败不重发，保证每个触发信号至多产生一次报警
type Dispatcher struct {
	config *config.Config
	sinks  []Sink
	logger *zap.Logger

	mu   sync.Mutex
	seen map[string]*seenSet // patient_id → 去重集
}

// NewDispatcher 创建报警分发器
func NewDispatcher(cfg *config.Config, sinks []Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		config: cfg,
		sinks:  sinks,
		logger: logger,
		seen:   make(map[string]*seenSet),
	}
}

// Dispatch 评估分析结果并在满足报警条件时投递报警
// 返回已投递的报警；无触发信号或全部被去重时返回 nil
func (d *Dispatcher) Dispatch(ctx context.Context, result *models.AnalysisResult) (*models.Alert, error) {
	triggers := collectTriggers(result)
	if len(triggers) == 0 {
		return nil, nil
	}

	// 幂等过滤：同一读数时间戳下已报过的触发类型不再报
	triggers = d.filterSeen(result.PatientID, result.Reading.Timestamp, triggers)
	if len(triggers) == 0 {
		d.logger.Debug("All triggers already dispatched",
			zap.String("patient_id", result.PatientID),
			zap.Time("reading_time", result.Reading.Timestamp),
		)
		return nil, nil
	}

	alert, err := buildAlert(result, triggers)
	if err != nil {
		return nil, fmt.Errorf("failed to build alert: %w", err)
	}

	// 扇出投递：单个目标失败只记日志，不影响其他目标，也不回滚去重标记
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, alert); err != nil {
			d.logger.Error("Failed to deliver alert",
				zap.String("sink", sink.Name()),
				zap.String("alert_id", alert.AlertID),
				zap.String("patient_id", alert.PatientID),
				zap.Error(err),
			)
		}
	}

	d.logger.Info("Alert dispatched",
		zap.String("alert_id", alert.AlertID),
		zap.String("patient_id", alert.PatientID),
		zap.String("severity", alert.Severity),
		zap.String("trigger_kinds", alert.TriggerKinds),
		zap.String("reason", alert.Reason),
	)

	return alert, nil
}

// collectTriggers 从分析结果中收集触发信号
func collectTriggers(result *models.AnalysisResult) []trigger {
	var triggers []trigger

	// 1. 分区触发：任一体征分区达到 high/critical
	vitals := make([]string, 0, len(result.Zones))
	for vital := range result.Zones {
		vitals = append(vitals, vital)
	}
	sort.Strings(vitals)
	for _, vital := range vitals {
		zone := result.Zones[vital]
		if zone.Severity == models.SeverityHigh || zone.Severity == models.SeverityCritical {
			triggers = append(triggers, trigger{
				kind:     models.TriggerZone,
				severity: zone.Severity,
				vital:    vital,
				reason:   vital + ":" + zone.Key,
			})
		}
	}

	// 2. 综合风险触发：Medium → high，High → critical
	switch result.Risk.Level {
	case models.RiskMedium:
		triggers = append(triggers, trigger{
			kind:     models.TriggerRiskScore,
			severity: models.SeverityHigh,
			reason:   "risk_score:medium",
		})
	case models.RiskHigh:
		triggers = append(triggers, trigger{
			kind:     models.TriggerRiskScore,
			severity: models.SeverityCritical,
			reason:   "risk_score:high",
		})
	}

	// 3. 预测触发
	for _, p := range result.Predictive {
		triggers = append(triggers, trigger{
			kind:     models.TriggerPredictive,
			severity: p.Severity,
			vital:    p.Vital,
			reason:   p.Vital + ":" + p.Kind,
		})
	}

	return triggers
}

// buildAlert 由触发信号构建报警记录
func buildAlert(result *models.AnalysisResult, triggers []trigger) (*models.Alert, error) {
	severity := models.SeverityLow
	kindSet := make(map[string]bool)
	vitalSet := make(map[string]bool)
	var kinds, vitals, reasons []string
	for _, t := range triggers {
		severity = models.MaxSeverity(severity, t.severity)
		if !kindSet[t.kind] {
			kindSet[t.kind] = true
			kinds = append(kinds, t.kind)
		}
		if t.vital != "" && !vitalSet[t.vital] {
			vitalSet[t.vital] = true
			vitals = append(vitals, t.vital)
		}
		reasons = append(reasons, t.reason)
	}

	// 触发时的读数与分析快照，随报警持久化供回溯
	triggerData, err := json.Marshal(map[string]interface{}{
		"reading":     result.Reading,
		"zones":       result.Zones,
		"risk":        result.Risk,
		"correlation": result.Correlation,
		"predictive":  result.Predictive,
		"quality":     result.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	now := time.Now()
	return &models.Alert{
		AlertID:      uuid.New().String(),
		PatientID:    result.PatientID,
		Severity:     severity,
		TriggerKinds: strings.Join(kinds, ","),
		Parameters:   strings.Join(vitals, ","),
		Reason:       strings.Join(reasons, ","),
		TriggerData:  triggerData,
		ReadingTime:  result.Reading.Timestamp,
		Status:       models.AlertStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// filterSeen 过滤已报过的触发类型并登记剩余类型
func (d *Dispatcher) filterSeen(patientID string, readingTime time.Time, triggers []trigger) []trigger {
	d.mu.Lock()
	defer d.mu.Unlock()

	set, ok := d.seen[patientID]
	if !ok {
		set = newSeenSet(d.config.Alerts.SeenLimit)
		d.seen[patientID] = set
	}

	out := triggers[:0]
	for _, t := range triggers {
		key := fmt.Sprintf("%d:%s", readingTime.UnixNano(), t.kind)
		if set.add(key) {
			out = append(out, t)
		}
	}
	return out
}

// seenSet 有界 FIFO 去重集
// 容量满时淘汰最旧的键；窗口远大于正常的重复投递间隔，
// 有界只是为了防止长期运行下内存无界增长
type seenSet struct {
	limit int
	keys  map[string]bool
	order []string
}

func newSeenSet(limit int) *seenSet {
	if limit < 1 {
		limit = 1
	}
	return &seenSet{
		limit: limit,
		keys:  make(map[string]bool),
	}
}

// add 登记键；返回 false 表示键已存在
func (s *seenSet) add(key string) bool {
	if s.keys[key] {
		return false
	}
	s.keys[key] = true
	s.order = append(s.order, key)
	if len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.keys, oldest)
	}
	return true
}
