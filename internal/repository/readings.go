package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

// ReadingsRepository 读数仓库（vital_readings 表）
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建读数仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// CreateReading 写入一条读数
func (r *ReadingsRepository) CreateReading(ctx context.Context, reading *models.Reading) error {
	if reading == nil {
		return fmt.Errorf("reading is required")
	}
	if reading.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}

	query := `
		INSERT INTO vital_readings (
			patient_id,
			reading_time,
			heart_rate,
			respiration_rate,
			movement,
			presence
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		reading.PatientID,
		reading.Timestamp,
		reading.HeartRate,
		reading.RespirationRate,
		reading.Movement,
		reading.Presence,
	)

	if err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}

	return nil
}

// GetRecentReadings 获取病人最近 limit 条读数，按时间升序返回
// 服务重启后用于重建内存滑动窗口
func (r *ReadingsRepository) GetRecentReadings(ctx context.Context, patientID string, limit int) ([]models.Reading, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if limit <= 0 {
		limit = 50
	}

	// 内层倒序取最近 limit 条，外层转回升序
	query := `
		SELECT patient_id, reading_time, heart_rate, respiration_rate, movement, presence
		FROM (
			SELECT patient_id, reading_time, heart_rate, respiration_rate, movement, presence
			FROM vital_readings
			WHERE patient_id = $1
			ORDER BY reading_time DESC
			LIMIT $2
		) recent
		ORDER BY reading_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	readings := []models.Reading{}
	for rows.Next() {
		var reading models.Reading
		err := rows.Scan(
			&reading.PatientID,
			&reading.Timestamp,
			&reading.HeartRate,
			&reading.RespirationRate,
			&reading.Movement,
			&reading.Presence,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// GetReadingsInRange 获取病人某时间段内的读数，按时间升序
func (r *ReadingsRepository) GetReadingsInRange(ctx context.Context, patientID string, start, end time.Time) ([]models.Reading, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	query := `
		SELECT patient_id, reading_time, heart_rate, respiration_rate, movement, presence
		FROM vital_readings
		WHERE patient_id = $1
		  AND reading_time >= $2
		  AND reading_time <= $3
		ORDER BY reading_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, patientID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings in range: %w", err)
	}
	defer rows.Close()

	readings := []models.Reading{}
	for rows.Next() {
		var reading models.Reading
		err := rows.Scan(
			&reading.PatientID,
			&reading.Timestamp,
			&reading.HeartRate,
			&reading.RespirationRate,
			&reading.Movement,
			&reading.Presence,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return readings, nil
}

// ListPatients 最近 withinMinutes 分钟内有读数的病人 ID 列表
func (r *ReadingsRepository) ListPatients(ctx context.Context, withinMinutes int) ([]string, error) {
	threshold := time.Now().Add(-time.Duration(withinMinutes) * time.Minute)

	query := `
		SELECT DISTINCT patient_id
		FROM vital_readings
		WHERE reading_time > $1
		ORDER BY patient_id
	`

	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan patient_id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patients: %w", err)
	}

	return ids, nil
}
