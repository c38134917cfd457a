// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pluginverse/storefront/pkg/observability"
	"github.com/pluginverse/storefront/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Observability ObservabilityConfig

	// AdminEmail identifies the seed administrator account created at startup
	AdminEmail    string
	AdminUsername string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for probes)
	HealthPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
		AdminEmail:    getEnv("STOREFRONT_ADMIN_EMAIL", ""),
		AdminUsername: getEnv("STOREFRONT_ADMIN_USERNAME", "admin"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("STOREFRONT_HOST", "0.0.0.0"),
		Port:            getEnv("STOREFRONT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("STOREFRONT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STOREFRONT_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STOREFRONT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STOREFRONT_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("STOREFRONT_HEALTH_PORT", "9090"),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("STOREFRONT_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dsn := getEnv("STOREFRONT_DB_DSN", ""); dsn != "" {
		cfg.DSN = dsn
	}
	if maxConns := getEnvInt("STOREFRONT_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxOpenConns = maxConns
	}

	if backend := getEnv("STOREFRONT_BLOB_BACKEND", ""); backend != "" {
		cfg.BlobBackend = backend
	}
	if root := getEnv("STOREFRONT_BLOB_ROOT", ""); root != "" {
		cfg.BlobRoot = root
	}
	if endpoint := getEnv("STOREFRONT_S3_ENDPOINT", ""); endpoint != "" {
		cfg.S3Endpoint = endpoint
	}
	if region := getEnv("STOREFRONT_S3_REGION", ""); region != "" {
		cfg.S3Region = region
	}
	if bucket := getEnv("STOREFRONT_S3_BUCKET", ""); bucket != "" {
		cfg.S3Bucket = bucket
	}
	if accessKey := getEnv("STOREFRONT_S3_ACCESS_KEY", ""); accessKey != "" {
		cfg.S3AccessKey = accessKey
	}
	if secretKey := getEnv("STOREFRONT_S3_SECRET_KEY", ""); secretKey != "" {
		cfg.S3SecretKey = secretKey
	}
	if pathStyle := getEnv("STOREFRONT_S3_USE_PATH_STYLE", ""); pathStyle != "" {
		cfg.S3UsePathStyle = strings.ToLower(pathStyle) == "true"
	}

	if redisURL := getEnv("STOREFRONT_REDIS_ADDR", ""); redisURL != "" {
		cfg.RedisAddr = redisURL
	}
	if redisPassword := getEnv("STOREFRONT_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if cacheEnabled := getEnv("STOREFRONT_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}

	return cfg
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("STOREFRONT_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("STOREFRONT_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STOREFRONT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STOREFRONT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STOREFRONT_OTEL_SERVICE_NAME", "storefront"),
		OTelServiceVersion: getEnv("STOREFRONT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("STOREFRONT_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or postgres)", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	switch c.Storage.BlobBackend {
	case "filesystem":
		if c.Storage.BlobRoot == "" {
			return fmt.Errorf("blob root is required for filesystem backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 backend")
		}
	default:
		return fmt.Errorf("invalid blob backend: %s (must be filesystem or s3)", c.Storage.BlobBackend)
	}

	if c.Storage.CacheEnabled && c.Storage.RedisAddr == "" {
		return fmt.Errorf("redis address is required when the cache is enabled")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
