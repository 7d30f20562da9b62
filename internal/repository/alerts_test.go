package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vitalwatch/internal/models"
)

func setupMockAlertsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewAlertsRepository(db, logger)

	return db, mock, repo
}

func alertRowColumns() []string {
	return []string{
		"alert_id", "patient_id", "severity", "trigger_kinds", "parameters",
		"reason", "trigger_data", "reading_time", "status", "read",
		"acknowledged", "acknowledged_by", "acknowledged_at", "created_at", "updated_at",
	}
}

// ============================================
// 基础 CRUD 操作测试
// ============================================

func TestCreateAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	alert := &models.Alert{
		AlertID:      uuid.New().String(),
		PatientID:    "patient-1",
		Severity:     models.SeverityCritical,
		TriggerKinds: models.TriggerZone,
		Parameters:   models.VitalHeartRate,
		Reason:       "heart_rate:critical_high",
		TriggerData:  json.RawMessage(`{"heart_rate": 135}`),
		ReadingTime:  now,
		Status:       models.AlertStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO alerts`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateAlert(ctx, alert)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAlert_MissingFields(t *testing.T) {
	db, _, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.CreateAlert(ctx, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alert is required")

	err = repo.CreateAlert(ctx, &models.Alert{PatientID: "patient-1"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "alert_id is required")

	err = repo.CreateAlert(ctx, &models.Alert{AlertID: uuid.New().String()})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "patient_id is required")
}

func TestGetAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows(alertRowColumns()).AddRow(
		alertID, "patient-1", "critical", "zone", "heart_rate",
		"heart_rate:critical_high", `{"heart_rate": 135}`, now, "active", false,
		false, nil, nil, now, now,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnRows(rows)

	alert, err := repo.GetAlert(ctx, alertID)

	require.NoError(t, err)
	assert.Equal(t, alertID, alert.AlertID)
	assert.Equal(t, "patient-1", alert.PatientID)
	assert.Equal(t, models.SeverityCritical, alert.Severity)
	assert.Equal(t, "heart_rate:critical_high", alert.Reason)
	assert.Nil(t, alert.AcknowledgedBy)
	assert.Nil(t, alert.AcknowledgedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAlert_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	mock.ExpectQuery(`SELECT`).
		WithArgs(alertID).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.GetAlert(ctx, alertID)

	assert.Error(t, err)
	assert.Nil(t, alert)
	assert.Contains(t, err.Error(), "not found")
}

func TestListAlerts_WithFilters(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	patientID := "patient-1"
	severity := models.SeverityCritical

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(patientID, severity).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(alertRowColumns()).AddRow(
		uuid.New().String(), patientID, severity, "zone", "heart_rate",
		"heart_rate:critical_high", `{}`, now, "active", false,
		false, nil, nil, now, now,
	)
	mock.ExpectQuery(`SELECT`).
		WithArgs(patientID, severity, 20, 0).
		WillReturnRows(rows)

	alerts, total, err := repo.ListAlerts(ctx, AlertFilters{
		PatientID: &patientID,
		Severity:  &severity,
	}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, patientID, alerts[0].PatientID)

	require.NoError(t, mock.ExpectationsWereMet())
}

// ============================================
// 状态管理测试
// ============================================

func TestMarkAlertRead_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(alertID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkAlertRead(ctx, alertID)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAlertRead_NotFound(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(alertID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkAlertRead(ctx, alertID)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAcknowledgeAlert_Success(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	ctx := context.Background()
	alertID := uuid.New().String()

	mock.ExpectExec(`UPDATE alerts`).
		WithArgs(models.AlertStatusAcknowledged, "nurse-7", sqlmock.AnyArg(), alertID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AcknowledgeAlert(ctx, alertID, "nurse-7")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeAlert_MissingHandler(t *testing.T) {
	db, _, repo := setupMockAlertsDB(t)
	defer db.Close()

	err := repo.AcknowledgeAlert(context.Background(), uuid.New().String(), "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "acknowledged_by is required")
}

// ============================================
// 统计查询测试
// ============================================

func TestCountActiveAlerts(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("patient-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountActiveAlerts(context.Background(), "patient-1")

	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestGetRecentAlert_None(t *testing.T) {
	db, mock, repo := setupMockAlertsDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT`).
		WithArgs("patient-1", models.SeverityCritical, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	alert, err := repo.GetRecentAlert(context.Background(), "patient-1", models.SeverityCritical, 10)

	require.NoError(t, err)
	assert.Nil(t, alert)
}
