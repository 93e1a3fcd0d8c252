package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shotpipe/shotpipe/pkg/observability"
	"github.com/shotpipe/shotpipe/pkg/registry"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Registry storage configuration
	Storage StorageConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// StorageConfig holds registry storage configuration
type StorageConfig struct {
	Type string // "filesystem", "sqlite", "postgres"

	// Filesystem config
	FilesystemRoot string

	// SQLite config
	SQLitePath string

	// PostgreSQL config
	PostgresURL string

	// Redis cache config
	CacheEnabled  bool
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// S3 archive config
	ArchiveEnabled   bool
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	S3UsePathStyle   bool

	// Retention config
	RetentionSchedule string
	RetentionMaxAge   time.Duration
	RetentionKeep     int
}

// PipelineConfig holds publish pipeline configuration
type PipelineConfig struct {
	PluginDirs []string
	Workers    int
	DropDirs   []string
	SettleTime time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
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
		Pipeline:      loadPipelineConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SHOTPIPE_HOST", "0.0.0.0"),
		Port:            getEnv("SHOTPIPE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SHOTPIPE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SHOTPIPE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("SHOTPIPE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SHOTPIPE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Type:           getEnv("SHOTPIPE_STORAGE_TYPE", "filesystem"),
		FilesystemRoot: getEnv("SHOTPIPE_FILESYSTEM_ROOT", "/var/shotpipe/registry"),
		SQLitePath:     getEnv("SHOTPIPE_SQLITE_PATH", "/var/shotpipe/registry.db"),
		PostgresURL:    getEnv("SHOTPIPE_POSTGRES_URL", ""),

		CacheEnabled:  getEnvBool("SHOTPIPE_CACHE_ENABLED", false),
		RedisURL:      getEnv("SHOTPIPE_REDIS_URL", "redis://localhost:6379"),
		RedisPassword: getEnv("SHOTPIPE_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("SHOTPIPE_REDIS_DB", 0),

		ArchiveEnabled: getEnvBool("SHOTPIPE_ARCHIVE_ENABLED", false),
		S3Endpoint:     getEnv("SHOTPIPE_S3_ENDPOINT", ""),
		S3Region:       getEnv("SHOTPIPE_S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("SHOTPIPE_S3_BUCKET", ""),
		S3AccessKey:    getEnv("SHOTPIPE_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("SHOTPIPE_S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("SHOTPIPE_S3_USE_PATH_STYLE", false),

		RetentionSchedule: getEnv("SHOTPIPE_RETENTION_SCHEDULE", ""),
		RetentionMaxAge:   getEnvDuration("SHOTPIPE_RETENTION_MAX_AGE", 0),
		RetentionKeep:     getEnvInt("SHOTPIPE_RETENTION_KEEP", 3),
	}
}

func loadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PluginDirs: getEnvList("SHOTPIPE_PLUGIN_DIRS", nil),
		Workers:    getEnvInt("SHOTPIPE_WORKERS", 4),
		DropDirs:   getEnvList("SHOTPIPE_DROP_DIRS", nil),
		SettleTime: getEnvDuration("SHOTPIPE_SETTLE_TIME", 2*time.Second),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("SHOTPIPE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("SHOTPIPE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SHOTPIPE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SHOTPIPE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SHOTPIPE_OTEL_SERVICE_NAME", "shotpipe-registry"),
		OTelServiceVersion: getEnv("SHOTPIPE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("SHOTPIPE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Type {
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be filesystem, sqlite, or postgres)", c.Storage.Type)
	}

	if c.Storage.ArchiveEnabled && c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required when archiving is enabled")
	}

	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	return nil
}

// ArchiveConfig builds the S3 archiver config from storage settings.
func (c *Config) ArchiveConfig() registry.S3ArchiveConfig {
	return registry.S3ArchiveConfig{
		Endpoint:     c.Storage.S3Endpoint,
		Region:       c.Storage.S3Region,
		Bucket:       c.Storage.S3Bucket,
		AccessKey:    c.Storage.S3AccessKey,
		SecretKey:    c.Storage.S3SecretKey,
		UsePathStyle: c.Storage.S3UsePathStyle,
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	return defaultValue
}
