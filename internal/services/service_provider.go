package services

import (
	"context"
	"fmt"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/db/repository"
	"github.com/agrisense/irrigation-backend/internal/kafka"
	"github.com/agrisense/irrigation-backend/internal/mqtt"
	"github.com/agrisense/irrigation-backend/internal/notify"
	"github.com/agrisense/irrigation-backend/internal/state"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/agrisense/irrigation-backend/internal/weather"
	"go.uber.org/zap"
)

// ServiceProvider manages all services for the application
type ServiceProvider struct {
	logger   *utils.Logger
	config   *config.Config
	database *db.Database

	sharedState  *state.SharedState
	repoFactory  *repository.RepositoryFactory
	kafkaManager *kafka.Manager
	mqttClient   *mqtt.Client

	broadcastService *BroadcastService
	ingestService    *IngestService
	trainerService   *TrainerService
	schedulerService *SchedulerService
	forecastService  *ForecastService
	alertService     *AlertService
	reportService    *ReportService
	chatService      *ChatService
	weatherPoller    *WeatherPoller
	telegramBot      *TelegramBotService

	telegram *notify.Telegram
	mailer   *notify.Mailer
}

// NewServiceProvider creates a new service provider
func NewServiceProvider(
	logger *utils.Logger,
	config *config.Config,
	database *db.Database,
) *ServiceProvider {
	return &ServiceProvider{
		logger:   logger.Named("services"),
		config:   config,
		database: database,
	}
}

// Initialize wires and starts all services
func (sp *ServiceProvider) Initialize(ctx context.Context) error {
	var err error

	sp.sharedState = state.New()
	sp.repoFactory = repository.NewRepositoryFactory(sp.database.DB)

	sp.broadcastService = NewBroadcastService(sp.logger)
	sp.logger.Info("Broadcast service initialized")

	sp.ingestService = NewIngestService(
		sp.config,
		sp.repoFactory.Reading(),
		sp.sharedState,
		sp.broadcastService,
		sp.logger,
	)
	// inbound websocket frames are sensor submissions
	sp.broadcastService.SetMessageHandler(func(client *Client, data []byte) {
		if _, ierr := sp.ingestService.IngestJSON(data, client); ierr != nil {
			sp.logger.Debug("Rejected websocket frame", zap.Error(ierr))
		}
	})

	sp.trainerService, err = NewTrainerService(
		sp.config,
		sp.repoFactory.Reading(),
		sp.repoFactory.Training(),
		sp.broadcastService,
		sp.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to initialize trainer: %w", err)
	}

	sp.schedulerService = NewSchedulerService(sp.config, sp.trainerService, sp.repoFactory.Reading(), sp.logger)
	sp.schedulerService.Start(ctx)

	sp.forecastService = NewForecastService(sp.config, sp.trainerService, sp.sharedState, sp.logger)

	weatherClient := weather.NewClient(sp.config.Weather, sp.logger)
	sp.weatherPoller = NewWeatherPoller(sp.config, weatherClient, sp.sharedState, sp.logger)
	sp.weatherPoller.Start(ctx)

	sp.telegram = notify.NewTelegram(sp.config.Telegram, sp.logger)
	sp.mailer = notify.NewMailer(sp.config.Email, sp.logger)

	sp.alertService = NewAlertService(
		sp.config,
		sp.sharedState,
		sp.repoFactory.Alert(),
		sp.telegram,
		sp.broadcastService,
		sp.logger,
	)
	sp.alertService.Start(ctx)

	sp.reportService = NewReportService(sp.config, sp.sharedState, sp.trainerService, sp.weatherPoller, sp.mailer, sp.telegram, sp.logger)
	if err = sp.reportService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start report service: %w", err)
	}

	sp.chatService = NewChatService(sp.config, sp.sharedState, sp.logger)

	sp.telegramBot = NewTelegramBotService(sp.telegram, sp.chatService, sp.reportService, sp.broadcastService, sp.logger)
	sp.telegramBot.Start(ctx)

	if err = sp.initKafka(); err != nil {
		return err
	}
	if err = sp.initMQTT(); err != nil {
		return err
	}

	sp.logger.Info("All services initialized successfully")
	return nil
}

// initKafka starts the optional Kafka event bridge
func (sp *ServiceProvider) initKafka() error {
	if !sp.config.Kafka.Enabled {
		sp.logger.Info("Kafka bridge disabled")
		return nil
	}

	manager, err := kafka.NewManager(&sp.config.Kafka, sp.logger)
	if err != nil {
		return fmt.Errorf("failed to create Kafka manager: %w", err)
	}

	if err := manager.RegisterGatewayHandler("irrigation", func(payload []byte) error {
		_, ierr := sp.ingestService.IngestJSON(payload, nil)
		return ierr
	}); err != nil {
		return fmt.Errorf("failed to register gateway consumer: %w", err)
	}

	if err := manager.Start(); err != nil {
		return fmt.Errorf("failed to start Kafka manager: %w", err)
	}

	sp.kafkaManager = manager
	sp.ingestService.SetPublisher(&kafkaPublisher{manager: manager})
	sp.alertService.SetPublisher(&kafkaPublisher{manager: manager})
	sp.logger.Info("Kafka bridge started")
	return nil
}

// initMQTT starts the optional MQTT ingest bridge
func (sp *ServiceProvider) initMQTT() error {
	if !sp.config.MQTT.Enabled {
		sp.logger.Info("MQTT bridge disabled")
		return nil
	}

	client, err := mqtt.NewClient(sp.config.MQTT, func(payload []byte) {
		if _, ierr := sp.ingestService.IngestJSON(payload, nil); ierr != nil {
			sp.logger.Debug("Rejected MQTT frame", zap.Error(ierr))
		}
	}, sp.logger)
	if err != nil {
		return fmt.Errorf("failed to connect MQTT bridge: %w", err)
	}
	if err := client.Subscribe(); err != nil {
		return fmt.Errorf("failed to subscribe MQTT bridge: %w", err)
	}

	sp.mqttClient = client
	sp.logger.Info("MQTT bridge started")
	return nil
}

// Shutdown performs a graceful shutdown of all services
func (sp *ServiceProvider) Shutdown() error {
	sp.logger.Info("Shutting down services")

	if sp.schedulerService != nil {
		sp.schedulerService.Stop()
	}
	if sp.alertService != nil {
		sp.alertService.Stop()
	}
	if sp.reportService != nil {
		sp.reportService.Stop()
	}
	if sp.weatherPoller != nil {
		sp.weatherPoller.Stop()
	}
	if sp.telegramBot != nil {
		sp.telegramBot.Stop()
	}

	if sp.kafkaManager != nil && sp.kafkaManager.IsRunning() {
		sp.logger.Info("Stopping Kafka manager")
		if err := sp.kafkaManager.Stop(); err != nil {
			sp.logger.Error("Failed to stop Kafka manager", zap.Error(err))
		}
	}
	if sp.mqttClient != nil {
		sp.mqttClient.Close()
	}

	sp.logger.Info("Services shut down successfully")
	return nil
}

// kafkaPublisher adapts the Kafka manager to the service publisher interfaces
type kafkaPublisher struct {
	manager *kafka.Manager
}

func (p *kafkaPublisher) PublishReading(reading *models.SensorReading) error {
	return p.manager.ProduceReading(reading)
}

func (p *kafkaPublisher) PublishAlert(event *models.AlertEvent) error {
	return p.manager.ProduceAlert(event)
}

// GetSharedState returns the shared runtime state
func (sp *ServiceProvider) GetSharedState() *state.SharedState {
	return sp.sharedState
}

// GetRepositoryFactory returns the repository factory
func (sp *ServiceProvider) GetRepositoryFactory() *repository.RepositoryFactory {
	return sp.repoFactory
}

// GetBroadcastService returns the realtime broadcast hub
func (sp *ServiceProvider) GetBroadcastService() *BroadcastService {
	return sp.broadcastService
}

// GetIngestService returns the ingest service
func (sp *ServiceProvider) GetIngestService() *IngestService {
	return sp.ingestService
}

// GetTrainerService returns the trainer service
func (sp *ServiceProvider) GetTrainerService() *TrainerService {
	return sp.trainerService
}

// GetSchedulerService returns the retrain scheduler
func (sp *ServiceProvider) GetSchedulerService() *SchedulerService {
	return sp.schedulerService
}

// GetForecastService returns the forecast service
func (sp *ServiceProvider) GetForecastService() *ForecastService {
	return sp.forecastService
}

// GetAlertService returns the alert watcher
func (sp *ServiceProvider) GetAlertService() *AlertService {
	return sp.alertService
}

// GetReportService returns the report scheduler
func (sp *ServiceProvider) GetReportService() *ReportService {
	return sp.reportService
}

// GetChatService returns the chat service
func (sp *ServiceProvider) GetChatService() *ChatService {
	return sp.chatService
}

// GetTelegramBotService returns the interactive Telegram bot
func (sp *ServiceProvider) GetTelegramBotService() *TelegramBotService {
	return sp.telegramBot
}
