package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/agrisense/irrigation-backend/internal/config"
	"github.com/agrisense/irrigation-backend/internal/utils"
	"go.uber.org/zap"
)

// Client is the optional MQTT ingest bridge. ESP32 firmware that publishes
// to a broker instead of calling the HTTP API lands here; frames are handed
// to the ingest path unmodified so validation stays in one place.
type Client struct {
	cfg     config.MQTTConfig
	client  mqtt.Client
	logger  *utils.Logger
	onFrame func(payload []byte)
}

// NewClient creates and connects the MQTT bridge
func NewClient(cfg config.MQTTConfig, onFrame func(payload []byte), logger *utils.Logger) (*Client, error) {
	c := &Client{
		cfg:     cfg,
		logger:  logger.Named("mqtt"),
		onFrame: onFrame,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("MQTT client connected", zap.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", zap.Error(err))
	})

	c.client = mqtt.NewClient(opts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return c, nil
}

// Subscribe starts consuming the configured sensor topic
func (c *Client) Subscribe() error {
	token := c.client.Subscribe(c.cfg.Topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.logger.Debug("MQTT frame received", zap.String("topic", msg.Topic()))
		c.onFrame(msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.cfg.Topic, token.Error())
	}
	c.logger.Info("Subscribed to sensor topic", zap.String("topic", c.cfg.Topic))
	return nil
}

// Publish sends one message, used for pump commands back to the device
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker
func (c *Client) Close() {
	c.client.Disconnect(250)
	c.logger.Info("MQTT client disconnected")
}
