package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Training TrainingConfig `mapstructure:"training"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
	Alerts   AlertsConfig   `mapstructure:"alerts"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
	Environment  string `mapstructure:"environment"`
	APIToken     string `mapstructure:"api_token"`
}

// DatabaseConfig holds database-specific configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// IngestConfig controls sensor ingestion and the rolling dataset
type IngestConfig struct {
	ADCFullScale    float64 `mapstructure:"adc_full_scale"`
	MaxRows         int     `mapstructure:"max_rows"`
	OnlineThreshold int     `mapstructure:"online_threshold_seconds"`
}

// TrainingConfig controls the model trainer and retrain scheduler
type TrainingConfig struct {
	MinRows          int     `mapstructure:"min_rows"`
	TestFraction     float64 `mapstructure:"test_fraction"`
	WindowDays       int     `mapstructure:"window_days"`
	MaxOrder         int     `mapstructure:"max_order"`
	IntervalHours    int     `mapstructure:"interval_hours"`
	RowCountTrigger  int     `mapstructure:"row_count_trigger"`
	RowCheckInterval int     `mapstructure:"row_check_interval_seconds"`
	ArtifactDir      string  `mapstructure:"artifact_dir"`
}

// ForecastConfig bounds the forecast service
type ForecastConfig struct {
	MaxSteps int `mapstructure:"max_steps"`
}

// WeatherConfig holds OpenWeather provider configuration
type WeatherConfig struct {
	APIKey         string `mapstructure:"api_key"`
	City           string `mapstructure:"city"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	PollMinutes    int    `mapstructure:"poll_minutes"`
}

// ChatConfig holds AI chat provider configuration
type ChatConfig struct {
	GeminiAPIKey     string `mapstructure:"gemini_api_key"`
	GeminiModel      string `mapstructure:"gemini_model"`
	OpenRouterAPIKey string `mapstructure:"openrouter_api_key"`
	OpenRouterModel  string `mapstructure:"openrouter_model"`
	MaxInputChars    int    `mapstructure:"max_input_chars"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken      string `mapstructure:"bot_token"`
	ChatID        int64  `mapstructure:"chat_id"`
	StatusMinutes int    `mapstructure:"status_minutes"`
}

// EmailConfig holds SMTP configuration for scheduled reports
type EmailConfig struct {
	SMTPHost    string   `mapstructure:"smtp_host"`
	SMTPPort    int      `mapstructure:"smtp_port"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	From        string   `mapstructure:"from"`
	Recipients  []string `mapstructure:"recipients"`
	MorningCron string   `mapstructure:"morning_cron"`
	EveningCron string   `mapstructure:"evening_cron"`
}

// AlertsConfig holds alert thresholds and cooldowns
type AlertsConfig struct {
	CheckIntervalSeconds int     `mapstructure:"check_interval_seconds"`
	SoilLowPct           float64 `mapstructure:"soil_low_pct"`
	SoilCriticalPct      float64 `mapstructure:"soil_critical_pct"`
	SoilHighPct          float64 `mapstructure:"soil_high_pct"`
	TemperatureHighC     float64 `mapstructure:"temperature_high_c"`
	LightLowPct          float64 `mapstructure:"light_low_pct"`
	LightHighPct         float64 `mapstructure:"light_high_pct"`
	RainProbabilityPct   float64 `mapstructure:"rain_probability_pct"`
	CooldownMinutes      int     `mapstructure:"cooldown_minutes"`
}

// KafkaConfig holds Kafka bridge configuration
type KafkaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Brokers        string `mapstructure:"brokers"`
	ConsumerGroup  string `mapstructure:"consumer_group"`
	SecurityEnable bool   `mapstructure:"security_enable"`
	SecurityUser   string `mapstructure:"security_user"`
	SecurityPass   string `mapstructure:"security_pass"`
}

// MQTTConfig holds the MQTT ingest bridge configuration
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LoadConfig loads the application configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "./config"
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	// Environment variable overrides, e.g. IRRIGATION_WEATHER_API_KEY
	v.SetEnvPrefix("IRRIGATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults and env vars apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	v.AutomaticEnv()
	setDefaults(v)

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15)  // seconds
	v.SetDefault("server.write_timeout", 15) // seconds
	v.SetDefault("server.idle_timeout", 60)  // seconds
	v.SetDefault("server.environment", "development")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "irrigation")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")

	// Ingestion defaults
	v.SetDefault("ingest.adc_full_scale", 4095) // 12-bit ESP32 ADC
	v.SetDefault("ingest.max_rows", 10000)
	v.SetDefault("ingest.online_threshold_seconds", 120)

	// Training defaults
	v.SetDefault("training.min_rows", 20)
	v.SetDefault("training.test_fraction", 0.2)
	v.SetDefault("training.window_days", 7)
	v.SetDefault("training.max_order", 5)
	v.SetDefault("training.interval_hours", 24)
	v.SetDefault("training.row_count_trigger", 100)
	v.SetDefault("training.row_check_interval_seconds", 300)
	v.SetDefault("training.artifact_dir", "./artifacts")

	// Forecast defaults
	v.SetDefault("forecast.max_steps", 50)

	// Weather defaults
	v.SetDefault("weather.city", "Erode")
	v.SetDefault("weather.timeout_seconds", 10)
	v.SetDefault("weather.poll_minutes", 10)

	// Chat defaults
	v.SetDefault("chat.gemini_model", "gemini-1.5-flash")
	v.SetDefault("chat.openrouter_model", "openai/chatgpt-4o-latest")
	v.SetDefault("chat.max_input_chars", 2000)
	v.SetDefault("chat.timeout_seconds", 15)

	// Telegram defaults
	v.SetDefault("telegram.status_minutes", 5)

	// Email defaults
	v.SetDefault("email.smtp_host", "smtp.gmail.com")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.morning_cron", "0 6 * * *")
	v.SetDefault("email.evening_cron", "0 19 * * *")

	// Alert defaults
	v.SetDefault("alerts.check_interval_seconds", 60)
	v.SetDefault("alerts.soil_low_pct", 30)
	v.SetDefault("alerts.soil_critical_pct", 15)
	v.SetDefault("alerts.soil_high_pct", 85)
	v.SetDefault("alerts.temperature_high_c", 40)
	v.SetDefault("alerts.light_low_pct", 10)
	v.SetDefault("alerts.light_high_pct", 95)
	v.SetDefault("alerts.rain_probability_pct", 50)
	v.SetDefault("alerts.cooldown_minutes", 30)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "kafka:9092")
	v.SetDefault("kafka.consumer_group", "irrigation-backend")
	v.SetDefault("kafka.security_enable", false)

	// MQTT defaults
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "irrigation-backend")
	v.SetDefault("mqtt.topic", "irrigation/sensors/#")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "stdout")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.APIToken == "" && !config.Server.IsDevelopment() {
		return fmt.Errorf("server API token is required in non-development environments")
	}

	if config.Training.TestFraction <= 0 || config.Training.TestFraction >= 1 {
		return fmt.Errorf("training test_fraction must be in (0, 1), got %v", config.Training.TestFraction)
	}

	if config.Training.MinRows < 10 {
		return fmt.Errorf("training min_rows must be at least 10, got %d", config.Training.MinRows)
	}

	if config.Database.Password == "" && !config.Server.IsDevelopment() {
		return fmt.Errorf("database password is required in non-development environments")
	}

	return nil
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode, c.TimeZone)
}

// RetrainInterval returns the wall-clock retrain interval
func (c *TrainingConfig) RetrainInterval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// OnlineWindow returns the duration after which a silent device counts as offline
func (c *IngestConfig) OnlineWindow() time.Duration {
	return time.Duration(c.OnlineThreshold) * time.Second
}

// IsProduction returns true if the environment is production
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment returns true if the environment is development
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsTest returns true if the environment is test
func (c *ServerConfig) IsTest() bool {
	return c.Environment == "test"
}
