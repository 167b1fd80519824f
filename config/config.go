package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Store     StoreConfig     `yaml:"store"`
	Payment   PaymentConfig   `yaml:"payment"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString builds a pgx connection string.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	OrderPlacedTopic    string `yaml:"order_placed_topic"`
	OrderStatusTopic    string `yaml:"order_status_topic"`
	APIConsumerGroup    string `yaml:"api_consumer_group"`
	WorkerConsumerGroup string `yaml:"worker_consumer_group"`
}

func (k KafkaConfig) Brokers() []string {
	return []string{fmt.Sprintf("%s:%d", k.Host, k.Port)}
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StoreConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	Environment string `yaml:"environment"` // "development" | "production"
	LogLevel    string `yaml:"log_level"`

	SessionTTLHours         int `yaml:"session_ttl_hours"`
	CurrentStatusTTLSeconds int `yaml:"current_status_ttl_seconds"`
	CartCountTTLSeconds     int `yaml:"cart_count_ttl_seconds"`
	LoginRateLimitPerMinute int `yaml:"login_rate_limit_per_minute"`
	LowStockThreshold       int `yaml:"low_stock_threshold"`
	FirstCheckDelaySeconds  int `yaml:"first_check_delay_seconds"`

	WorkerHTTPAddr              string `yaml:"worker_http_addr"`
	WorkerPollIntervalSeconds   int    `yaml:"worker_poll_interval_seconds"`
	WorkerBatchSize             int    `yaml:"worker_batch_size"`
	WorkerConcurrency           int    `yaml:"worker_concurrency"`
	WorkerLeaseSeconds          int    `yaml:"worker_lease_seconds"`
	WorkerRateLimitPerMinute    int    `yaml:"worker_rate_limit_per_minute"`
	SessionSweepIntervalSeconds int    `yaml:"session_sweep_interval_seconds"`

	// Optional fulfillment scheduling overrides.
	WorkerNextCheckPreparingSeconds  int `yaml:"worker_next_check_preparing_seconds"`
	WorkerNextCheckShippedMinSeconds int `yaml:"worker_next_check_shipped_min_seconds"`
	WorkerNextCheckShippedMaxSeconds int `yaml:"worker_next_check_shipped_max_seconds"`
	WorkerBackoff1Seconds            int `yaml:"worker_backoff_1_seconds"`
	WorkerBackoff2Seconds            int `yaml:"worker_backoff_2_seconds"`
	WorkerBackoff3Seconds            int `yaml:"worker_backoff_3_seconds"`
	WorkerBackoff4Seconds            int `yaml:"worker_backoff_4_seconds"`

	FulfillmentBaseURL  string `yaml:"fulfillment_base_url"`
	FulfillmentMode     string `yaml:"fulfillment_mode"` // "courier" | "fake"
	FulfillmentAPIKey   string `yaml:"fulfillment_api_key"`
	FulfillmentProvider string `yaml:"fulfillment_provider"`
}

type PaymentConfig struct {
	Mode string `yaml:"mode"` // "simulated" | "decline"
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

func LoadConfig(filename string) (*Config, error) {
	// .env is optional; missing file is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Username, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Redis.Host, "REDIS_HOST")
	setString(&c.Kafka.Host, "KAFKA_HOST")
	setString(&c.Store.HTTPAddr, "HTTP_ADDR")
	setString(&c.Payment.Mode, "PAYMENT_MODE")
	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		c.Database.Port = port
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
