package controllers

import (
	"net/http"
	"strings"

	"github.com/agrisense/irrigation-backend/internal/services"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are served from other origins; auth happens via token
	CheckOrigin: func(r *http.Request) bool { return true },
}

// IngestController handles sensor data submission over HTTP and the shared
// realtime websocket endpoint
type IngestController struct {
	ingestService    *services.IngestService
	broadcastService *services.BroadcastService
	logger           *utils.Logger
}

// NewIngestController creates a new ingest controller
func NewIngestController(ingestService *services.IngestService, broadcastService *services.BroadcastService, logger *utils.Logger) *IngestController {
	return &IngestController{
		ingestService:    ingestService,
		broadcastService: broadcastService,
		logger:           logger.Named("ingest_controller"),
	}
}

// RegisterRoutes registers the ingest routes
func (c *IngestController) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/sensor-data", c.PostSensorData)
	router.POST("/irrigation/manual/:action", c.ManualIrrigation)
}

// RegisterWebSocket registers the shared realtime endpoint. Devices push
// readings as frames; dashboards receive broadcasts on the same socket.
func (c *IngestController) RegisterWebSocket(router gin.IRoutes) {
	router.GET("/ws", c.WebSocket)
}

// PostSensorData accepts one sensor sample
func (c *IngestController) PostSensorData(ctx *gin.Context) {
	var payload services.SensorPayload
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		utils.HandleError(ctx, utils.ErrBadRequest, c.logger)
		return
	}

	reading, err := c.ingestService.Ingest(&payload, nil)
	if err != nil {
		utils.HandleError(ctx, err, c.logger)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"status":  "stored",
		"reading": reading,
	})
}

// WebSocket upgrades the connection and registers it with the broadcast hub
func (c *IngestController) WebSocket(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	c.broadcastService.RegisterClient(conn, ctx.ClientIP())
}

// ManualIrrigation broadcasts a pump command to connected devices. The
// device acknowledges by reporting manual mode in its next reading.
func (c *IngestController) ManualIrrigation(ctx *gin.Context) {
	action := strings.ToLower(ctx.Param("action"))
	if action != "on" && action != "off" {
		utils.HandleError(ctx, utils.ErrValidation, c.logger)
		return
	}

	c.broadcastService.Broadcast(services.EventTypePumpCommand, gin.H{
		"pump_cmd": strings.ToUpper(action),
	})
	c.logger.Info("Manual pump command issued", zap.String("action", action))

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "command_sent",
		"command": strings.ToUpper(action),
	})
}
