package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// MessageHandler processes one message from a subscribed topic. A returned
// error sends the original payload to the dead-letter topic.
type MessageHandler func(msg *kafka.Message) error

// Consumer subscribes to irrigation topics with one handler per topic.
// Lifecycle is owned by the manager; shutdown comes through the context or
// Stop, never from process signals.
type Consumer struct {
	consumer *kafka.Consumer
	logger   *utils.Logger
	handlers map[string]MessageHandler
	dlq      *Producer
	stop     chan struct{}
	done     chan struct{}
	running  bool
}

// NewConsumer creates a consumer in the configured group. dlq may be nil to
// disable dead-lettering.
func NewConsumer(cfg *config.KafkaConfig, logger *utils.Logger, dlq *Producer) (*Consumer, error) {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers":       cfg.Brokers,
		"group.id":                cfg.ConsumerGroup,
		"auto.offset.reset":       "earliest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	}
	if err := applySecurity(cfg, kafkaConfig); err != nil {
		return nil, err
	}

	consumer, err := kafka.NewConsumer(kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &Consumer{
		consumer: consumer,
		logger:   logger.Named("kafka_consumer"),
		handlers: make(map[string]MessageHandler),
		dlq:      dlq,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// RegisterHandler binds the handler for one topic, called before Start
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) error {
	if _, exists := c.handlers[topic]; exists {
		return fmt.Errorf("topic %s already has a handler", topic)
	}
	c.handlers[topic] = handler
	c.logger.Info("Registered handler", zap.String("topic", topic))
	return nil
}

// Start subscribes to every registered topic and launches the poll loop
func (c *Consumer) Start(ctx context.Context) error {
	if c.running {
		return errors.New("consumer is already running")
	}

	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return errors.New("no topics registered")
	}

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	c.logger.Info("Subscribed", zap.Strings("topics", topics))

	c.running = true
	go c.pollLoop(ctx)
	return nil
}

func (c *Consumer) pollLoop(ctx context.Context) {
	defer close(c.done)
	defer func() {
		c.running = false
		_ = c.consumer.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Context canceled, stopping consumer")
			return
		case <-c.stop:
			c.logger.Info("Stopping consumer")
			return
		default:
			msg, err := c.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				var kerr kafka.Error
				if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				c.logger.Error("Read failed", zap.Error(err))
				continue
			}
			c.dispatch(msg)
		}
	}
}

// dispatch routes one message to its topic handler, dead-lettering the
// original payload on handler failure
func (c *Consumer) dispatch(msg *kafka.Message) {
	if msg == nil || msg.TopicPartition.Topic == nil {
		return
	}
	topic := *msg.TopicPartition.Topic

	handler, ok := c.handlers[topic]
	if !ok {
		c.logger.Warn("No handler for topic", zap.String("topic", topic))
		return
	}

	err := handler(msg)
	if err == nil {
		return
	}
	c.logger.Error("Handler rejected message",
		zap.String("topic", topic),
		zap.Int64("offset", int64(msg.TopicPartition.Offset)),
		zap.Error(err),
	)

	if c.dlq == nil {
		return
	}
	headers := map[string]string{
		"error":        err.Error(),
		"source_topic": topic,
	}
	if derr := c.dlq.ProduceRaw(TopicDeadLetter, string(msg.Key), msg.Value, headers); derr != nil {
		c.logger.Error("Dead-letter publish failed", zap.Error(derr))
	}
}

// Stop halts the poll loop and waits for it to drain
func (c *Consumer) Stop() {
	if c.running {
		close(c.stop)
		<-c.done
	}
	c.logger.Info("Kafka consumer stopped")
}
