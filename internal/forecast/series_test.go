package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agrisense/irrigation-backend/internal/db/models"
)

func TestNormalizePercent(t *testing.T) {
	// raw 12-bit ADC counts scale to percent
	assert.InDelta(t, 50.0, NormalizePercent(2047.5, 4095), 0.01)
	assert.InDelta(t, 100.0, NormalizePercent(4095, 4095), 0.01)

	// values already in percent range pass through
	assert.Equal(t, 42.0, NormalizePercent(42, 4095))
	assert.Equal(t, 0.0, NormalizePercent(0, 4095))
	assert.Equal(t, 100.0, NormalizePercent(100, 4095))

	// negative input clamps to zero
	assert.Equal(t, 0.0, NormalizePercent(-5, 4095))

	// zero full scale falls back to the 12-bit default
	assert.InDelta(t, 50.0, NormalizePercent(2047.5, 0), 0.01)
}

func TestNormalizePercentIdempotent(t *testing.T) {
	once := NormalizePercent(3000, 4095)
	twice := NormalizePercent(once, 4095)
	assert.Equal(t, once, twice)
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, ClampPercent(-1))
	assert.Equal(t, 100.0, ClampPercent(101))
	assert.Equal(t, 55.5, ClampPercent(55.5))
}

func TestPrepareSeriesExcludesAbsentSensors(t *testing.T) {
	base := time.Now()
	readings := make([]models.SensorReading, 10)
	for i := range readings {
		readings[i] = models.SensorReading{
			Time:         base.Add(time.Duration(i) * time.Minute),
			SoilMoisture: 40 + float64(i),
			Temperature:  25,
			Humidity:     60,
			// rain, light and flow never report: absent sensors
		}
	}

	series := PrepareSeries(readings)

	assert.Len(t, series.Target, 10)
	assert.Equal(t, []string{"temperature", "humidity"}, series.ExogCols)
	for _, row := range series.Exog {
		assert.Len(t, row, 2)
	}
}

func TestPrepareSeriesNoExog(t *testing.T) {
	readings := []models.SensorReading{
		{SoilMoisture: 40},
		{SoilMoisture: 41},
	}
	series := PrepareSeries(readings)
	assert.Empty(t, series.ExogCols)
	assert.Nil(t, series.Exog)
}

func TestSplitTrainTest(t *testing.T) {
	trainN, testN := SplitTrainTest(1000, 0.2, 3)
	assert.Equal(t, 800, trainN)
	assert.Equal(t, 200, testN)

	// small datasets keep at least the minimum holdout
	trainN, testN = SplitTrainTest(10, 0.2, 3)
	assert.Equal(t, 7, trainN)
	assert.Equal(t, 3, testN)

	// the holdout never swallows the whole series
	trainN, testN = SplitTrainTest(3, 0.2, 3)
	assert.Equal(t, 1, trainN)
	assert.Equal(t, 2, testN)
}
