package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

// AlertsRepository 报警仓库（alerts 表）
type AlertsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertsRepository 创建报警仓库
func NewAlertsRepository(db *sql.DB, logger *zap.Logger) *AlertsRepository {
	return &AlertsRepository{
		db:     db,
		logger: logger,
	}
}

// AlertFilters 报警查询过滤条件
type AlertFilters struct {
	PatientID  *string
	Severity   *string
	Severities []string
	Status     *string
	StartTime  *time.Time // created_at >= StartTime
	EndTime    *time.Time // created_at <= EndTime
	UnreadOnly bool
}

const alertColumns = `
	alert_id,
	patient_id,
	severity,
	trigger_kinds,
	parameters,
	reason,
	trigger_data,
	reading_time,
	status,
	read,
	acknowledged,
	acknowledged_by,
	acknowledged_at,
	created_at,
	updated_at
`

// scanAlert 从一行扫描报警记录并处理可空字段
func scanAlert(scan func(dest ...interface{}) error) (*models.Alert, error) {
	var alert models.Alert
	var acknowledgedBy sql.NullString
	var acknowledgedAt sql.NullTime
	var triggerData []byte

	err := scan(
		&alert.AlertID,
		&alert.PatientID,
		&alert.Severity,
		&alert.TriggerKinds,
		&alert.Parameters,
		&alert.Reason,
		&triggerData,
		&alert.ReadingTime,
		&alert.Status,
		&alert.Read,
		&alert.Acknowledged,
		&acknowledgedBy,
		&acknowledgedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if acknowledgedBy.Valid {
		alert.AcknowledgedBy = &acknowledgedBy.String
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = &acknowledgedAt.Time
	}
	if len(triggerData) > 0 {
		alert.TriggerData = triggerData
	} else {
		alert.TriggerData = json.RawMessage("{}")
	}

	return &alert, nil
}

// ============================================
// 基础 CRUD 操作
// ============================================

// CreateAlert 创建报警记录
func (r *AlertsRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if alert.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}

	query := `
		INSERT INTO alerts (
			alert_id,
			patient_id,
			severity,
			trigger_kinds,
			parameters,
			reason,
			trigger_data,
			reading_time,
			status,
			read,
			acknowledged,
			created_at,
			updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		alert.AlertID,
		alert.PatientID,
		alert.Severity,
		alert.TriggerKinds,
		alert.Parameters,
		alert.Reason,
		alert.TriggerData,
		alert.ReadingTime,
		alert.Status,
		alert.Read,
		alert.Acknowledged,
		alert.CreatedAt,
		alert.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetAlert 根据 alert_id 获取报警
func (r *AlertsRepository) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	if alertID == "" {
		return nil, fmt.Errorf("alert_id is required")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE alert_id = $1
	`, alertColumns)

	row := r.db.QueryRowContext(ctx, query, alertID)
	alert, err := scanAlert(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found: alert_id=%s", alertID)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	return alert, nil
}

// ListAlerts 列表查询（支持过滤、分页），按创建时间倒序
func (r *AlertsRepository) ListAlerts(ctx context.Context, filters AlertFilters, page, size int) ([]*models.Alert, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	argN := 1

	if filters.PatientID != nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", argN))
		args = append(args, *filters.PatientID)
		argN++
	}
	if filters.Severity != nil {
		where = append(where, fmt.Sprintf("severity = $%d", argN))
		args = append(args, *filters.Severity)
		argN++
	}
	if len(filters.Severities) > 0 {
		placeholders := make([]string, len(filters.Severities))
		for i := range filters.Severities {
			placeholders[i] = fmt.Sprintf("$%d", argN)
			args = append(args, filters.Severities[i])
			argN++
		}
		where = append(where, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ", ")))
	}
	if filters.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argN))
		args = append(args, *filters.Status)
		argN++
	}
	if filters.StartTime != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}
	if filters.UnreadOnly {
		where = append(where, "read = false")
	}

	whereClause := "WHERE " + strings.Join(where, " AND ")

	queryCount := fmt.Sprintf(`SELECT COUNT(*) FROM alerts %s`, whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, queryCount, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, alertColumns, whereClause, argN, argN+1)
	args = append(args, size, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		alert, err := scanAlert(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, total, nil
}

// ============================================
// 状态管理
// ============================================

// MarkAlertRead 标记报警已读
func (r *AlertsRepository) MarkAlertRead(ctx context.Context, alertID string) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}

	query := `
		UPDATE alerts
		SET read = true,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, alertID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: alert_id=%s", alertID)
	}

	return nil
}

// AcknowledgeAlert 确认报警（状态转为 acknowledged，记录处理人和时间）
func (r *AlertsRepository) AcknowledgeAlert(ctx context.Context, alertID, acknowledgedBy string) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if acknowledgedBy == "" {
		return fmt.Errorf("acknowledged_by is required")
	}

	query := `
		UPDATE alerts
		SET status = $1,
		    acknowledged = true,
		    acknowledged_by = $2,
		    acknowledged_at = $3,
		    updated_at = CURRENT_TIMESTAMP
		WHERE alert_id = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		models.AlertStatusAcknowledged, acknowledgedBy, time.Now(), alertID)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: alert_id=%s", alertID)
	}

	return nil
}

// ============================================
// 统计查询
// ============================================

// CountActiveAlerts 统计病人当前 active 状态的报警数
func (r *AlertsRepository) CountActiveAlerts(ctx context.Context, patientID string) (int, error) {
	if patientID == "" {
		return 0, fmt.Errorf("patient_id is required")
	}

	query := `
		SELECT COUNT(*)
		FROM alerts
		WHERE patient_id = $1
		  AND status = 'active'
	`

	var total int
	if err := r.db.QueryRowContext(ctx, query, patientID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count active alerts: %w", err)
	}

	return total, nil
}

// GetRecentAlert 获取病人最近 withinMinutes 分钟内同严重程度的报警
// 供通知层做节流判断，不参与分发器的幂等去重
func (r *AlertsRepository) GetRecentAlert(ctx context.Context, patientID, severity string, withinMinutes int) (*models.Alert, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if severity == "" {
		return nil, fmt.Errorf("severity is required")
	}

	threshold := time.Now().Add(-time.Duration(withinMinutes) * time.Minute)

	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		WHERE patient_id = $1
		  AND severity = $2
		  AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, alertColumns)

	row := r.db.QueryRowContext(ctx, query, patientID, severity, threshold)
	alert, err := scanAlert(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 没有最近的同级报警
		}
		return nil, fmt.Errorf("failed to query recent alert: %w", err)
	}

	return alert, nil
}
