package api

import (
	"net/http"

	"github.com/agrisense/irrigation-backend/internal/api/controllers"
	"github.com/agrisense/irrigation-backend/internal/api/middleware"
	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db"
	"github.com/agrisense/irrigation-backend/internal/services"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router manages the API routes and controllers
type Router struct {
	engine             *gin.Engine
	logger             *utils.Logger
	config             *config.Config
	authMiddleware     *middleware.AuthMiddleware
	serviceProvider    *services.ServiceProvider
	db                 *db.Database
	apiV1              *gin.RouterGroup
	ingestController   *controllers.IngestController
	forecastController *controllers.ForecastController
	statusController   *controllers.StatusController
	chatController     *controllers.ChatController
}

// NewRouter creates a new Router instance
func NewRouter(
	config *config.Config,
	logger *utils.Logger,
	db *db.Database,
	serviceProvider *services.ServiceProvider,
) *Router {
	// Set Gin mode based on environment
	if config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Use the logger and recovery middleware
	engine.Use(gin.Recovery())
	engine.Use(middleware.LoggingMiddleware(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Authorization", "Content-Type", "Origin"}
	engine.Use(cors.New(corsConfig))

	authMiddleware := middleware.NewAuthMiddleware(&config.Server)

	return &Router{
		engine:          engine,
		logger:          logger.Named("router"),
		config:          config,
		authMiddleware:  authMiddleware,
		serviceProvider: serviceProvider,
		db:              db,
	}
}

// SetupRoutes configures all API routes
func (r *Router) SetupRoutes() {
	sp := r.serviceProvider

	// Health check endpoint (no auth required)
	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "healthy",
			"model_loaded": sp.GetTrainerService().ModelLoaded(),
		})
	})

	r.ingestController = controllers.NewIngestController(
		sp.GetIngestService(),
		sp.GetBroadcastService(),
		r.logger,
	)
	r.forecastController = controllers.NewForecastController(
		sp.GetForecastService(),
		sp.GetSchedulerService(),
		sp.GetTrainerService(),
		r.logger,
	)
	r.statusController = controllers.NewStatusController(
		r.config,
		sp.GetSharedState(),
		sp.GetRepositoryFactory().Reading(),
		sp.GetRepositoryFactory().Alert(),
		sp.GetTrainerService(),
		sp.GetSchedulerService(),
		sp.GetForecastService(),
		sp.GetBroadcastService(),
		r.logger,
	)
	r.chatController = controllers.NewChatController(sp.GetChatService(), r.logger)

	// Shared realtime endpoint; the websocket handshake carries the token
	// in a query parameter on constrained firmware, so it stays open and
	// frames are validated at ingest
	r.ingestController.RegisterWebSocket(r.engine)

	// API version group - all main API routes are under /api/v1
	r.apiV1 = r.engine.Group("/api/v1")
	r.apiV1.Use(r.authMiddleware.RequireToken())

	r.ingestController.RegisterRoutes(r.apiV1)
	r.forecastController.RegisterRoutes(r.apiV1)
	r.statusController.RegisterRoutes(r.apiV1)
	r.chatController.RegisterRoutes(r.apiV1)

	// Add Swagger documentation if not in production
	if !r.config.Server.IsProduction() {
		r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.logger.Info("API routes setup completed")
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
