package controllers

import (
	"net/http"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/notify"
	"github.com/agrisense/irrigation-backend/internal/services"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// StatusController serves system, sensor and summary views for dashboards
type StatusController struct {
	cfg              *config.Config
	sharedState      *state.SharedState
	readings         repository.ReadingRepository
	alerts           repository.AlertRepository
	trainerService   *services.TrainerService
	schedulerService *services.SchedulerService
	forecastService  *services.ForecastService
	broadcastService *services.BroadcastService
	logger           *utils.Logger
}

// NewStatusController creates a new status controller
func NewStatusController(
	cfg *config.Config,
	sharedState *state.SharedState,
	readings repository.ReadingRepository,
	alerts repository.AlertRepository,
	trainerService *services.TrainerService,
	schedulerService *services.SchedulerService,
	forecastService *services.ForecastService,
	broadcastService *services.BroadcastService,
	logger *utils.Logger,
) *StatusController {
	return &StatusController{
		cfg:              cfg,
		sharedState:      sharedState,
		readings:         readings,
		alerts:           alerts,
		trainerService:   trainerService,
		schedulerService: schedulerService,
		forecastService:  forecastService,
		broadcastService: broadcastService,
		logger:           logger.Named("status_controller"),
	}
}

// RegisterRoutes registers the status routes
func (c *StatusController) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/system-status", c.SystemStatus)
	router.GET("/sensor-status", c.SensorStatus)
	router.GET("/weather", c.Weather)
	router.GET("/irrigation-recommendation", c.IrrigationRecommendation)
	router.GET("/daily-summary", c.DailySummary)
}

// SystemStatus reports overall backend health and training state
func (c *StatusController) SystemStatus(ctx *gin.Context) {
	rows, err := c.readings.Count()
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	var lastTrain interface{}
	if t := c.schedulerService.LastTrainAt(); !t.IsZero() {
		lastTrain = t
	}

	bestModel := ""
	if report := c.trainerService.Report(); report != nil {
		bestModel = report.BestModel
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":             "running",
		"uptime_seconds":     int(c.sharedState.Uptime().Seconds()),
		"dataset_rows":       rows,
		"model_loaded":       c.trainerService.ModelLoaded(),
		"best_model":         bestModel,
		"training_in_flight": c.schedulerService.TrainingInFlight(),
		"last_retrain":       lastTrain,
		"next_retrain":       c.schedulerService.NextTrainAt(),
		"device_online":      c.sharedState.DeviceOnline(c.cfg.Ingest.OnlineWindow()),
		"realtime_clients":   c.broadcastService.ClientCount(),
	})
}

// SensorStatus reports device liveness and the latest reading. Values from
// an offline device are never presented as live.
func (c *StatusController) SensorStatus(ctx *gin.Context) {
	online := c.sharedState.DeviceOnline(c.cfg.Ingest.OnlineWindow())
	resp := gin.H{
		"online": online,
	}

	if last := c.sharedState.LastSeen(); !last.IsZero() {
		resp["last_seen"] = last
		resp["seconds_since_seen"] = int(time.Since(last).Seconds())
	}

	if online {
		resp["reading"] = c.sharedState.LatestReading()
	} else {
		resp["reading"] = nil
		resp["note"] = "sensor values not available, device offline"
	}

	ctx.JSON(http.StatusOK, resp)
}

// Weather returns the cached provider snapshot
func (c *StatusController) Weather(ctx *gin.Context) {
	snap := c.sharedState.Weather()
	if snap.FetchedAt.IsZero() {
		utils.HandleError(ctx, utils.ErrProvider, c.logger)
		return
	}
	ctx.JSON(http.StatusOK, snap)
}

// IrrigationRecommendation combines the forecast and weather into advice
func (c *StatusController) IrrigationRecommendation(ctx *gin.Context) {
	reading := c.sharedState.LatestReading()
	if reading == nil {
		utils.HandleError(ctx, utils.ErrNotFound, c.logger)
		return
	}
	currentSoil := reading.SoilMoisture

	// prediction is best-effort; without a model the advice degrades to
	// current conditions with low confidence
	predictedSoil := currentSoil
	confidence := "Low"
	if resp, err := c.forecastService.Predict(&services.PredictRequest{Steps: 1}); err == nil && len(resp.Predictions) > 0 {
		predictedSoil = resp.Predictions[0].Value
		confidence = "High"
	}

	weather := c.sharedState.Weather()
	rainExpected := weather.RainProbPct >= c.cfg.Alerts.RainProbabilityPct && !weather.FetchedAt.IsZero()

	rec := notify.Recommend(currentSoil, predictedSoil, rainExpected, weather.RainProbPct, confidence)
	ctx.JSON(http.StatusOK, gin.H{
		"current_soil":   currentSoil,
		"recommendation": rec,
	})
}

// DailySummary aggregates the last 24 hours of readings and today's counters
func (c *StatusController) DailySummary(ctx *gin.Context) {
	since := time.Now().Add(-24 * time.Hour)
	readings, err := c.readings.Window(since)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	var soilSum, tempSum, humSum float64
	for i := range readings {
		soilSum += readings[i].SoilMoisture
		tempSum += readings[i].Temperature
		humSum += readings[i].Humidity
	}
	resp := gin.H{
		"window_hours": 24,
		"readings":     len(readings),
	}
	if n := float64(len(readings)); n > 0 {
		resp["avg_soil_moisture"] = soilSum / n
		resp["avg_temperature"] = tempSum / n
		resp["avg_humidity"] = humSum / n
	}

	counters := c.sharedState.Counters()
	resp["pump_on_count"] = counters.PumpOnCount
	resp["pump_off_count"] = counters.PumpOffCount
	resp["water_liters"] = counters.WaterLiters

	if alertCount, err := c.alerts.CountSince(since); err == nil {
		resp["alerts_24h"] = alertCount
	}

	ctx.JSON(http.StatusOK, resp)
}
