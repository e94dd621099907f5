package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportHTTP  = "http"
	TransportKafka = "kafka"

	SnapshotStoreDatabase = "database"
	SnapshotStoreMemory   = "memory"
)

type Config struct {
	// Database
	DatabaseURL string

	// Kafka
	KafkaBrokers string
	KafkaTopic   string

	// API Configuration
	APIPort     string
	APIHost     string
	NonceSecret string
	CORSOrigins []string

	// LazyChat
	LazyChatAPIURL string
	WebhookURL     string
	PluginVersion  string
	StoreURL       string

	// Webhooks
	WebhookTransport string
	WebhookWorkers   int
	WebhookQueueSize int

	// Change tracking
	SnapshotStore string

	// Timeouts
	InteractiveTimeout time.Duration
	BulkTimeout        time.Duration
	TelemetryTimeout   time.Duration

	// Event log
	EventLogRetentionDays int

	// Environment
	Env      string
	LogLevel string
	LogFile  string
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	apiURL := strings.TrimRight(getEnv("LAZYCHAT_API_URL", "https://app.lazychat.io/api"), "/")

	return &Config{
		DatabaseURL:           getEnv("DATABASE_URL", "sqlite://lazychat.db"),
		KafkaBrokers:          getEnv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "lazychat-webhooks"),
		APIPort:               getEnv("API_PORT", "8080"),
		APIHost:               getEnv("API_HOST", "0.0.0.0"),
		NonceSecret:           getEnv("NONCE_SECRET", "change-me-nonce-secret"),
		CORSOrigins:           getEnvAsList("CORS_ORIGINS", []string{"*"}),
		LazyChatAPIURL:        apiURL,
		WebhookURL:            getEnv("WEBHOOK_URL", apiURL+"/woocommerce/webhook"),
		PluginVersion:         getEnv("PLUGIN_VERSION", "1.0.0"),
		StoreURL:              strings.TrimRight(getEnv("STORE_URL", "http://localhost:8080"), "/"),
		WebhookTransport:      getEnv("WEBHOOK_TRANSPORT", TransportHTTP),
		WebhookWorkers:        getEnvAsInt("WEBHOOK_WORKERS", 4),
		WebhookQueueSize:      getEnvAsInt("WEBHOOK_QUEUE_SIZE", 256),
		SnapshotStore:         getEnv("SNAPSHOT_STORE", SnapshotStoreDatabase),
		InteractiveTimeout:    getEnvAsDuration("INTERACTIVE_TIMEOUT", 15*time.Second),
		BulkTimeout:           getEnvAsDuration("BULK_TIMEOUT", 60*time.Second),
		TelemetryTimeout:      getEnvAsDuration("TELEMETRY_TIMEOUT", 5*time.Second),
		EventLogRetentionDays: getEnvAsInt("EVENT_LOG_RETENTION_DAYS", 15),
		Env:                   getEnv("ENV", "development"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
	}, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
