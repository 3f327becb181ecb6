package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// applySecurity adds SASL_SSL/PLAIN settings to a client config when the
// bridge runs against a secured cluster
func applySecurity(cfg *config.KafkaConfig, cm *kafka.ConfigMap) error {
	if !cfg.SecurityEnable {
		return nil
	}
	settings := map[string]string{
		"security.protocol": "SASL_SSL",
		"sasl.mechanisms":   "PLAIN",
		"sasl.username":     cfg.SecurityUser,
		"sasl.password":     cfg.SecurityPass,
	}
	for key, value := range settings {
		if err := cm.SetKey(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// Producer publishes irrigation events as JSON. Delivery is asynchronous;
// reports are drained in the background and failures logged.
type Producer struct {
	producer *kafka.Producer
	logger   *utils.Logger
}

// NewProducer creates a producer identified on the cluster by clientID
func NewProducer(cfg *config.KafkaConfig, logger *utils.Logger, clientID string) (*Producer, error) {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         clientID,
		"acks":              "all",
	}
	if err := applySecurity(cfg, kafkaConfig); err != nil {
		return nil, err
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &Producer{
		producer: producer,
		logger:   logger.Named("kafka_producer"),
	}
	go p.drainDeliveryReports()
	return p, nil
}

func (p *Producer) drainDeliveryReports() {
	for e := range p.producer.Events() {
		msg, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if msg.TopicPartition.Error != nil {
			p.logger.Error("Failed to deliver event",
				zap.String("topic", *msg.TopicPartition.Topic),
				zap.Error(msg.TopicPartition.Error),
			)
			continue
		}
		p.logger.Debug("Event delivered",
			zap.String("topic", *msg.TopicPartition.Topic),
			zap.Int32("partition", msg.TopicPartition.Partition),
			zap.Int64("offset", int64(msg.TopicPartition.Offset)),
		)
	}
}

// Produce JSON-encodes value and enqueues it on topic keyed by key
func (p *Producer) Produce(topic, key string, value interface{}, headers map[string]string) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", topic, err)
	}
	return p.ProduceRaw(topic, key, encoded, headers)
}

// ProduceRaw enqueues an already-encoded payload, used by the dead-letter
// path to forward the original bytes untouched
func (p *Producer) ProduceRaw(topic, key string, value []byte, headers map[string]string) error {
	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
		Timestamp:      time.Now(),
	}
	if key != "" {
		message.Key = []byte(key)
	}
	for k, v := range headers {
		message.Headers = append(message.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	if err := p.producer.Produce(message, nil); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	return nil
}

// Flush waits up to timeoutMs for queued events to be delivered
func (p *Producer) Flush(timeoutMs int) int {
	return p.producer.Flush(timeoutMs)
}

// Close flushes outstanding events and releases the client
func (p *Producer) Close() {
	remaining := p.producer.Flush(5000)
	if remaining > 0 {
		p.logger.Warn("Undelivered events at close", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
