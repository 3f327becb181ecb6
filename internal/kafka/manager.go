package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/db/models"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Topics of the irrigation event bridge
const (
	// TopicSensorReadings carries accepted readings outbound for downstream
	// consumers (analytics, archival)
	TopicSensorReadings = "sensor-readings"
	// TopicAlerts carries dispatched alert events outbound
	TopicAlerts = "irrigation-alerts"
	// TopicGatewayIngest carries readings from field gateways that publish
	// to Kafka instead of calling the HTTP API
	TopicGatewayIngest = "sensor-gateway"
	// TopicDeadLetter collects gateway payloads rejected by the ingest path
	TopicDeadLetter = "irrigation-dlq"
)

// Manager owns the bridge producers and consumers and exposes typed publish
// paths for the two outbound event kinds.
type Manager struct {
	config           *config.KafkaConfig
	logger           *utils.Logger
	producer         *Producer
	dlqProducer      *Producer
	consumers        map[string]*Consumer
	consumerCtx      context.Context
	consumerCancel   context.CancelFunc
	wg               sync.WaitGroup
	mu               sync.Mutex
	isRunning        bool
	messageProcessed chan struct{}
}

// NewManager creates the bridge with separate producers for events and
// dead-letters so a DLQ burst never competes with live readings
func NewManager(cfg *config.KafkaConfig, logger *utils.Logger) (*Manager, error) {
	kafkaLogger := logger.Named("kafka_manager")

	producer, err := NewProducer(cfg, kafkaLogger, "irrigation-backend-producer")
	if err != nil {
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	dlqProducer, err := NewProducer(cfg, kafkaLogger, "irrigation-backend-dlq")
	if err != nil {
		return nil, fmt.Errorf("failed to create dead-letter producer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:           cfg,
		logger:           kafkaLogger,
		producer:         producer,
		dlqProducer:      dlqProducer,
		consumers:        make(map[string]*Consumer),
		consumerCtx:      ctx,
		consumerCancel:   cancel,
		messageProcessed: make(chan struct{}, 100),
	}, nil
}

// Start launches all registered consumers and the throughput monitor
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("kafka manager is already running")
	}

	for name, consumer := range m.consumers {
		m.logger.Info("Starting consumer", zap.String("name", name))
		if err := consumer.Start(m.consumerCtx); err != nil {
			m.stopAllConsumers()
			return fmt.Errorf("failed to start consumer %s: %w", name, err)
		}
	}

	m.wg.Add(1)
	go m.monitorProcessing()

	m.isRunning = true
	m.logger.Info("Kafka manager started")
	return nil
}

// AddConsumer registers a named consumer with one handler per topic,
// called before Start
func (m *Manager) AddConsumer(name string, handlers map[string]MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("cannot add consumer while manager is running")
	}
	if _, exists := m.consumers[name]; exists {
		return fmt.Errorf("consumer %s already exists", name)
	}

	consumer, err := NewConsumer(m.config, m.logger, m.dlqProducer)
	if err != nil {
		return fmt.Errorf("failed to create consumer %s: %w", name, err)
	}
	for topic, handler := range handlers {
		if err := consumer.RegisterHandler(topic, m.wrapHandler(handler)); err != nil {
			return fmt.Errorf("failed to register %s handler: %w", topic, err)
		}
	}

	m.consumers[name] = consumer
	m.logger.Info("Added consumer", zap.String("name", name))
	return nil
}

// wrapHandler signals the throughput monitor after each handled message
func (m *Manager) wrapHandler(handler MessageHandler) MessageHandler {
	return func(msg *kafka.Message) error {
		defer func() {
			select {
			case m.messageProcessed <- struct{}{}:
			default:
				// monitor buffer full under burst, counting is best-effort
			}
		}()
		return handler(msg)
	}
}

// ProduceReading publishes one accepted sensor reading keyed by its source
func (m *Manager) ProduceReading(reading *models.SensorReading) error {
	return m.producer.Produce(TopicSensorReadings, string(reading.Source), reading, nil)
}

// ProduceAlert publishes one dispatched alert event keyed by its type
func (m *Manager) ProduceAlert(event *models.AlertEvent) error {
	return m.producer.Produce(TopicAlerts, string(event.Type), event, nil)
}

// RegisterGatewayHandler registers a handler for readings arriving from
// Kafka-publishing field gateways. The raw message value is handed over
// untouched so the ingest path applies the same validation as HTTP.
func (m *Manager) RegisterGatewayHandler(name string, handler func(payload []byte) error) error {
	return m.AddConsumer(
		fmt.Sprintf("%s-gateway", name),
		map[string]MessageHandler{
			TopicGatewayIngest: func(msg *kafka.Message) error {
				return handler(msg.Value)
			},
		},
	)
}

// monitorProcessing logs per-minute consumption counts
func (m *Manager) monitorProcessing() {
	defer m.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	messageCount := 0
	for {
		select {
		case <-m.consumerCtx.Done():
			m.logger.Info("Message processing monitor stopped")
			return
		case <-m.messageProcessed:
			messageCount++
		case <-ticker.C:
			if messageCount > 0 {
				m.logger.Info("Messages processed",
					zap.Int("count", messageCount),
					zap.String("interval", "1m"))
				messageCount = 0
			}
		}
	}
}

func (m *Manager) stopAllConsumers() {
	for name, consumer := range m.consumers {
		m.logger.Info("Stopping consumer", zap.String("name", name))
		consumer.Stop()
	}
}

// Stop shuts down consumers first so no handler publishes into a closed
// producer, then flushes and closes both producers
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return fmt.Errorf("kafka manager is not running")
	}

	m.consumerCancel()
	m.stopAllConsumers()
	m.wg.Wait()

	m.producer.Close()
	m.dlqProducer.Close()

	m.isRunning = false
	m.logger.Info("Kafka manager stopped")
	return nil
}

// IsRunning returns whether the Kafka manager is running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}
