package services

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

// newTestDB opens an isolated in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.SensorReading{},
		&models.AlertEvent{},
		&models.TrainingRun{},
	))
	return db
}

// testConfig returns a config with production defaults and a throwaway
// artifact directory
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		Ingest: config.IngestConfig{
			ADCFullScale:    4095,
			MaxRows:         10000,
			OnlineThreshold: 120,
		},
		Training: config.TrainingConfig{
			MinRows:          20,
			TestFraction:     0.2,
			WindowDays:       7,
			MaxOrder:         3,
			IntervalHours:    24,
			RowCountTrigger:  100,
			RowCheckInterval: 300,
			ArtifactDir:      t.TempDir(),
		},
		Forecast: config.ForecastConfig{MaxSteps: 50},
		Chat: config.ChatConfig{
			MaxInputChars:  2000,
			TimeoutSeconds: 1,
		},
		Alerts: config.AlertsConfig{
			CheckIntervalSeconds: 60,
			SoilLowPct:           30,
			SoilCriticalPct:      15,
			SoilHighPct:          85,
			TemperatureHighC:     40,
			LightLowPct:          10,
			LightHighPct:         95,
			RainProbabilityPct:   50,
			CooldownMinutes:      30,
		},
	}
}

func nopLogger() *utils.Logger {
	return utils.NewNopLogger()
}

// seedReadings appends n one-minute-spaced readings ending now. Soil follows
// a smooth autocorrelated curve; temperature and humidity vary so the
// multivariate variant has populated exogenous columns.
func seedReadings(t *testing.T, readings repository.ReadingRepository, n int) {
	t.Helper()

	start := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		r := &models.SensorReading{
			Time:         start.Add(time.Duration(i) * time.Minute),
			SoilMoisture: 45 + 12*math.Sin(float64(i)/30) + 3*math.Sin(float64(i)/7),
			Temperature:  28 + 5*math.Sin(float64(i)/50),
			Humidity:     60 + 10*math.Cos(float64(i)/40),
			Mode:         models.ModeAuto,
			Source:       models.SourceTest,
		}
		require.NoError(t, readings.Append(r))
	}
}
