package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"hermes/pkg/errors"
)

type Config struct {
	App           AppConfig
	Server        ServerConfig
	Models        ModelsConfig
	Redis         RedisConfig
	ClickHouse    ClickHouseConfig
	Kafka         KafkaConfig
	Cache         CacheConfig
	Retry         RetryConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"hermes"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// ModelsConfig locates the model definitions file.
type ModelsConfig struct {
	Path string `envconfig:"MODELS_CONFIG_PATH" default:"models.yaml"`
}

// RedisConfig enables the distributed rate limiter and the response cache.
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClickHouseConfig enables the usage analytics sink.
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"hermes"`
}

// KafkaConfig enables the usage event pipeline.
type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"hermes"`
}

// CacheConfig controls the optional Redis response cache for generate
// calls.
type CacheConfig struct {
	Enabled bool          `envconfig:"RESPONSE_CACHE_ENABLED" default:"false"`
	TTL     time.Duration `envconfig:"RESPONSE_CACHE_TTL" default:"5m"`
}

// RetryConfig controls the opt-in retry decorator. Retries stay off unless
// explicitly enabled.
type RetryConfig struct {
	Enabled      bool          `envconfig:"RETRY_ENABLED" default:"false"`
	MaxRetries   int           `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	InitialDelay time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"100ms"`
	MaxDelay     time.Duration `envconfig:"RETRY_MAX_DELAY" default:"5s"`
	Strategy     string        `envconfig:"RETRY_STRATEGY" default:"exponential"`
	Multiplier   float64       `envconfig:"RETRY_MULTIPLIER" default:"2.0"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
