package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers understood by Load.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all configuration for the application
type Config struct {
	AppName        string
	DatabaseURL    string
	StorageDriver  string
	MigrationsPath string
	SecretKey      string
	TokenTTL       time.Duration
	CORSOrigins    []string
	LogLevel       string
	LogFormat      string
	Port           string
	PrometheusPort string
	TelegramToken  string

	WSSendBuffer   int
	WSWriteTimeout time.Duration
	WSPingInterval time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppName:        getEnvOrDefault("APP_NAME", "Social Wishlist API"),
		StorageDriver:  strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", StoragePostgres)),
		MigrationsPath: getEnvOrDefault("MIGRATIONS_PATH", "migrations"),
		TokenTTL:       time.Minute * time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 60)),
		CORSOrigins:    splitList(getEnvOrDefault("CORS_ORIGINS", "*")),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "text"),
		Port:           getEnvOrDefault("PORT", "8080"),
		PrometheusPort: getEnvOrDefault("PROMETHEUS_PORT", "9090"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		WSSendBuffer:   getEnvInt("WS_SEND_BUFFER", 16),
		WSWriteTimeout: time.Second * time.Duration(getEnvInt("WS_WRITE_TIMEOUT_SECONDS", 10)),
		WSPingInterval: time.Second * time.Duration(getEnvInt("WS_PING_INTERVAL_SECONDS", 30)),
	}

	switch cfg.StorageDriver {
	case StoragePostgres:
		if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required")
		}
	case StorageMemory:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	if cfg.SecretKey = os.Getenv("SECRET_KEY"); cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY environment variable is required")
	}

	if cfg.WSSendBuffer <= 0 {
		return nil, fmt.Errorf("WS_SEND_BUFFER must be positive")
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
