package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/models"
)

func TestClassifyZone_HeartRate(t *testing.T) {
	cases := []struct {
		value    float64
		zone     string
		severity string
	}{
		{30, "critical_low", models.SeverityCritical},
		{39.9, "critical_low", models.SeverityCritical},
		{40, "bradycardia", models.SeverityLow},
		{59, "bradycardia", models.SeverityLow},
		{60, "normal", models.SeverityNormal},
		{75, "normal", models.SeverityNormal},
		{100, "normal", models.SeverityNormal},
		{101, "tachycardia", models.SeverityHigh},
		{120, "tachycardia", models.SeverityHigh},
		{121, "critical_high", models.SeverityCritical},
		{300, "critical_high", models.SeverityCritical},
	}

	for _, tc := range cases {
		zone, err := ClassifyZone(tc.value, models.VitalHeartRate)
		require.NoError(t, err, "value %.1f", tc.value)
		assert.Equal(t, tc.zone, zone.Key, "value %.1f", tc.value)
		assert.Equal(t, tc.severity, zone.Severity, "value %.1f", tc.value)
	}
}

func TestClassifyZone_RespirationRate(t *testing.T) {
	cases := []struct {
		value    float64
		zone     string
		severity string
	}{
		{5, "critical_low", models.SeverityCritical},
		{8, "critical_low", models.SeverityCritical},
		{9, "bradypnea", models.SeverityLow},
		{11, "bradypnea", models.SeverityLow},
		{12, "normal", models.SeverityNormal},
		{16, "normal", models.SeverityNormal},
		{20, "normal", models.SeverityNormal},
		{21, "tachypnea", models.SeverityHigh},
		{25, "tachypnea", models.SeverityHigh},
		{26, "critical_high", models.SeverityCritical},
		{60, "critical_high", models.SeverityCritical},
	}

	for _, tc := range cases {
		zone, err := ClassifyZone(tc.value, models.VitalRespirationRate)
		require.NoError(t, err, "value %.1f", tc.value)
		assert.Equal(t, tc.zone, zone.Key, "value %.1f", tc.value)
		assert.Equal(t, tc.severity, zone.Severity, "value %.1f", tc.value)
	}
}

// 可测试性质：心率 [60,100] 且呼吸率 [12,20] 时两项分区严重程度都是 normal
func TestClassifyZone_NormalRangesAreNormal(t *testing.T) {
	for hr := 60.0; hr <= 100; hr++ {
		zone, err := ClassifyZone(hr, models.VitalHeartRate)
		require.NoError(t, err)
		assert.Equal(t, models.SeverityNormal, zone.Severity, "hr %.0f", hr)
	}
	for rr := 12.0; rr <= 20; rr++ {
		zone, err := ClassifyZone(rr, models.VitalRespirationRate)
		require.NoError(t, err)
		assert.Equal(t, models.SeverityNormal, zone.Severity, "rr %.0f", rr)
	}
}

func TestClassifyZone_Movement(t *testing.T) {
	zone, err := ClassifyZone(0, models.VitalMovement)
	require.NoError(t, err)
	assert.Equal(t, "none", zone.Key)
	assert.Equal(t, models.SeverityLow, zone.Severity)

	zone, err = ClassifyZone(3, models.VitalMovement)
	require.NoError(t, err)
	assert.Equal(t, "moderate", zone.Key)
	assert.Equal(t, models.SeverityNormal, zone.Severity)

	zone, err = ClassifyZone(7, models.VitalMovement)
	require.NoError(t, err)
	assert.Equal(t, "very_active", zone.Key)
}

func TestClassifyZone_OutOfDomain(t *testing.T) {
	_, err := ClassifyZone(500, models.VitalHeartRate)
	assert.Error(t, err)

	_, err = ClassifyZone(-1, models.VitalRespirationRate)
	assert.Error(t, err)

	_, err = ClassifyZone(75, "blood_pressure")
	assert.Error(t, err)
}
