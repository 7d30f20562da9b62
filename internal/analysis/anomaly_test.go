package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch/internal/models"
)

// makeReadings 按 1 分钟间隔构造读数序列
func makeReadings(base time.Time, hr []float64, rr []float64) []models.Reading {
	readings := make([]models.Reading, len(hr))
	for i := range hr {
		readings[i] = models.Reading{
			PatientID:       "patient-1",
			Timestamp:       base.Add(time.Duration(i) * time.Minute),
			HeartRate:       hr[i],
			RespirationRate: rr[i],
			Presence:        true,
		}
	}
	return readings
}

func TestDetectAnomalies_ImpossibleValue(t *testing.T) {
	base := time.Now()
	readings := makeReadings(base,
		[]float64{75, 300, 76},
		[]float64{16, 16, 16},
	)

	flags := DetectAnomalies(readings)

	// hr=300 同时触发 impossible_value 和 sudden_change
	require.NotEmpty(t, flags)
	var impossible *models.AnomalyFlag
	for i := range flags {
		if flags[i].Kind == models.AnomalyImpossibleValue {
			impossible = &flags[i]
		}
	}
	require.NotNil(t, impossible)
	assert.Equal(t, 1, impossible.ReadingIndex)
	assert.Equal(t, models.VitalHeartRate, impossible.Vital)
	assert.Equal(t, 300.0, impossible.Value)
}

func TestDetectAnomalies_SuddenChange(t *testing.T) {
	base := time.Now()
	// 80→125：Δ=45 > 40
	readings := makeReadings(base,
		[]float64{80, 125},
		[]float64{16, 16},
	)

	flags := DetectAnomalies(readings)

	require.Len(t, flags, 1)
	assert.Equal(t, models.AnomalySuddenChange, flags[0].Kind)
	assert.Equal(t, models.VitalHeartRate, flags[0].Vital)
	assert.Equal(t, 45.0, flags[0].Change)
	require.NotNil(t, flags[0].PreviousValue)
	assert.Equal(t, 80.0, *flags[0].PreviousValue)
}

func TestDetectAnomalies_RespirationJump(t *testing.T) {
	base := time.Now()
	readings := makeReadings(base,
		[]float64{75, 75},
		[]float64{14, 26},
	)

	flags := DetectAnomalies(readings)

	require.Len(t, flags, 1)
	assert.Equal(t, models.VitalRespirationRate, flags[0].Vital)
	assert.Equal(t, models.AnomalySuddenChange, flags[0].Kind)
}

func TestDetectAnomalies_CleanSequence(t *testing.T) {
	base := time.Now()
	readings := makeReadings(base,
		[]float64{75, 78, 76, 74},
		[]float64{16, 15, 16, 17},
	)

	assert.Empty(t, DetectAnomalies(readings))
}

// 可测试性质：hr=300 的读数被排除出心率基线，但同一条读数
// 结构上有效的呼吸率仍可用于呼吸率基线（按体征粒度排除）
func TestCleanPoints_PerVitalExclusion(t *testing.T) {
	base := time.Now()
	readings := makeReadings(base,
		[]float64{75, 300, 76},
		[]float64{16, 17, 16},
	)

	flags := DetectAnomalies(readings)

	hrPoints := CleanPoints(readings, flags, models.VitalHeartRate)
	rrPoints := CleanPoints(readings, flags, models.VitalRespirationRate)

	// 心率：下标 1 被排除（impossible_value），下标 2 也因 300→76 的
	// 跳变带 sudden_change 标记被排除
	require.Len(t, hrPoints, 1)
	assert.Equal(t, 75.0, hrPoints[0].Value)

	// 呼吸率：三条全部保留
	require.Len(t, rrPoints, 3)
	assert.Equal(t, 17.0, rrPoints[1].Value)
}

func TestFlaggedReadingCount_DistinctReadings(t *testing.T) {
	base := time.Now()
	// 下标 1 的读数同时带两个标记，只计一次
	readings := makeReadings(base,
		[]float64{80, 300, 80},
		[]float64{16, 30, 16},
	)

	flags := DetectAnomalies(readings)
	assert.GreaterOrEqual(t, len(flags), 2)
	assert.Equal(t, 2, FlaggedReadingCount(flags)) // 下标 1 和回落的下标 2
}

func TestFlagsForReading(t *testing.T) {
	base := time.Now()
	readings := makeReadings(base,
		[]float64{75, 300, 76},
		[]float64{16, 16, 16},
	)

	flags := DetectAnomalies(readings)
	own := FlagsForReading(flags, 1)
	require.NotEmpty(t, own)
	for _, f := range own {
		assert.Equal(t, 1, f.ReadingIndex)
	}
	assert.Empty(t, FlagsForReading(flags, 0))
}
