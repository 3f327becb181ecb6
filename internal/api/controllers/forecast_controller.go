package controllers

import (
	"net/http"

	"github.com/agrisense/irrigation-backend/internal/services"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/gin-gonic/gin"
)

// ForecastController serves predictions and training operations
type ForecastController struct {
	forecastService  *services.ForecastService
	schedulerService *services.SchedulerService
	trainerService   *services.TrainerService
	logger           *utils.Logger
}

// NewForecastController creates a new forecast controller
func NewForecastController(
	forecastService *services.ForecastService,
	schedulerService *services.SchedulerService,
	trainerService *services.TrainerService,
	logger *utils.Logger,
) *ForecastController {
	return &ForecastController{
		forecastService:  forecastService,
		schedulerService: schedulerService,
		trainerService:   trainerService,
		logger:           logger.Named("forecast_controller"),
	}
}

// RegisterRoutes registers the forecast routes
func (c *ForecastController) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/predict", c.Predict)
	router.GET("/model-report", c.ModelReport)
	router.POST("/train", c.Train)
}

// Predict serves a soil-moisture forecast
func (c *ForecastController) Predict(ctx *gin.Context) {
	var req services.PredictRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.HandleError(ctx, utils.ErrBadRequest, c.logger)
		return
	}

	resp, err := c.forecastService.Predict(&req)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusOK, resp)
}

// ModelReport returns the last training report
func (c *ForecastController) ModelReport(ctx *gin.Context) {
	report := c.trainerService.Report()
	if report == nil {
		utils.HandleError(ctx, utils.ErrNoModel, c.logger)
		return
	}
	ctx.JSON(http.StatusOK, report)
}

// Train kicks off a retrain through the single-flight gate. The run is
// fire-and-forget: the response only acknowledges the start, results land in
// the model report once the run completes.
func (c *ForecastController) Train(ctx *gin.Context) {
	if err := c.schedulerService.TriggerTrainAsync("manual"); err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}
	ctx.JSON(http.StatusAccepted, gin.H{"status": "training_started"})
}
