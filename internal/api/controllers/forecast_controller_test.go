package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/services"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
)

func newForecastRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.SensorReading{},
		&models.AlertEvent{},
		&models.TrainingRun{},
	))

	cfg := &config.Config{
		Training: config.TrainingConfig{
			MinRows:      20,
			TestFraction: 0.2,
			WindowDays:   7,
			MaxOrder:     3,
			ArtifactDir:  t.TempDir(),
		},
		Forecast: config.ForecastConfig{MaxSteps: 50},
	}

	logger := utils.NewNopLogger()
	factory := repository.NewRepositoryFactory(db)
	broadcast := services.NewBroadcastService(logger)

	trainer, err := services.NewTrainerService(cfg, factory.Reading(), factory.Training(), broadcast, logger)
	require.NoError(t, err)
	scheduler := services.NewSchedulerService(cfg, trainer, factory.Reading(), logger)
	forecastSvc := services.NewForecastService(cfg, trainer, state.New(), logger)

	router := gin.New()
	ctrl := NewForecastController(forecastSvc, scheduler, trainer, logger)
	ctrl.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestTrainAcknowledgesBeforeRunCompletes(t *testing.T) {
	router := newForecastRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/train", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "training_started", body["status"])
}

func TestModelReportBeforeFirstTrain(t *testing.T) {
	router := newForecastRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/model-report", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
