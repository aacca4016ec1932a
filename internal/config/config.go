package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string
}

type StorageConfig struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UseSSL       bool
	SignedURLTTL time.Duration
}

type BookingConfig struct {
	RenderTimeout             time.Duration
	UploadTimeout             time.Duration
	TempDir                   string
	ShipmentNumberMaxAttempts int
	TemplateDir               string
	TemplateName              string
	TermsPath                 string
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

type Config struct {
	Environment    string
	MetricsEnabled bool
	HTTP           HTTPConfig
	DB             DBConfig
	Auth           AuthConfig
	Storage        StorageConfig
	Booking        BookingConfig
	Kafka          KafkaConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AutomaticEnv()

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("STORAGE_USE_SSL", true)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment:    v.GetString("APP_ENV"),
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		HTTP: HTTPConfig{
			Host:            v.GetString("HTTP_HOST"),
			Port:            v.GetInt("HTTP_PORT"),
			ShutdownTimeout: v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
			AllowedOrigins:  parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Storage: StorageConfig{
			Endpoint:     v.GetString("STORAGE_ENDPOINT"),
			Region:       v.GetString("STORAGE_REGION"),
			AccessKey:    v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey:    v.GetString("STORAGE_SECRET_KEY"),
			Bucket:       v.GetString("STORAGE_BUCKET"),
			UseSSL:       v.GetBool("STORAGE_USE_SSL"),
			SignedURLTTL: v.GetDuration("STORAGE_SIGNED_URL_TTL"),
		},
		Booking: BookingConfig{
			RenderTimeout:             v.GetDuration("BOOKING_RENDER_TIMEOUT"),
			UploadTimeout:             v.GetDuration("BOOKING_UPLOAD_TIMEOUT"),
			TempDir:                   v.GetString("BOOKING_TEMP_DIR"),
			ShipmentNumberMaxAttempts: v.GetInt("SHIPMENT_NUMBER_MAX_ATTEMPTS"),
			TemplateDir:               v.GetString("TEMPLATE_DIR"),
			TemplateName:              v.GetString("TEMPLATE_NAME"),
			TermsPath:                 v.GetString("TERMS_PATH"),
		},
		Kafka: KafkaConfig{
			Brokers:      parseList(v.GetString("KAFKA_BROKERS")),
			Topic:        v.GetString("KAFKA_TOPIC"),
			BatchTimeout: v.GetDuration("KAFKA_BATCH_TIMEOUT"),
		},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}
	if cfg.Storage.Endpoint == "" {
		cfg.Storage.Endpoint = "s3.amazonaws.com"
	}
	if cfg.Storage.SignedURLTTL == 0 {
		cfg.Storage.SignedURLTTL = 5 * time.Minute
	}
	if cfg.Booking.RenderTimeout == 0 {
		cfg.Booking.RenderTimeout = 30 * time.Second
	}
	if cfg.Booking.UploadTimeout == 0 {
		cfg.Booking.UploadTimeout = 30 * time.Second
	}
	if cfg.Booking.TempDir == "" {
		cfg.Booking.TempDir = os.TempDir()
	}
	if cfg.Booking.ShipmentNumberMaxAttempts == 0 {
		cfg.Booking.ShipmentNumberMaxAttempts = 20
	}
	if cfg.Booking.TemplateDir == "" {
		cfg.Booking.TemplateDir = "./assets/templates"
	}
	if cfg.Booking.TemplateName == "" {
		cfg.Booking.TemplateName = "rate-confirmation"
	}
	if cfg.Booking.TermsPath == "" {
		cfg.Booking.TermsPath = "./assets/terms.json"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "shipment-events"
	}
	if cfg.Kafka.BatchTimeout == 0 {
		cfg.Kafka.BatchTimeout = 50 * time.Millisecond
	}
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if cfg.Booking.RenderTimeout < 0 || cfg.Booking.UploadTimeout < 0 {
		return fmt.Errorf("booking timeouts must be positive")
	}
	if cfg.Storage.SignedURLTTL < 0 {
		return fmt.Errorf("STORAGE_SIGNED_URL_TTL must be positive")
	}
	if cfg.Booking.ShipmentNumberMaxAttempts < 0 {
		return fmt.Errorf("SHIPMENT_NUMBER_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
