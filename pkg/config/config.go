package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the compositor service
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server (metrics / health / checkpoint endpoints)
	Port string
	Env  string // development, staging, production

	// Storage
	Database     DatabaseConfig
	ClickHouse   ClickHouseConfig
	StoreBackend string // postgres, clickhouse

	// Redis (selector cache)
	Redis RedisConfig

	// Compositor settings
	Compose ComposeConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// ClickHouseConfig holds the optional columnar store configuration
type ClickHouseConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	TTL      time.Duration
}

// ComposeConfig holds compositor run settings
type ComposeConfig struct {
	PolicyFile string // YAML file with index composition policies
	Schedule   string // cron expression for the daemon (with seconds)

	// Store circuit breaker
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Input coverage gate, each a ratio in [0, 1]
	Gate              bool
	MinPriceCoverage  float64
	MinFactorCoverage float64
	MinUnitsCoverage  float64
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		ClickHouse: ClickHouseConfig{
			DSN: getEnv("CLICKHOUSE_DSN", ""),
		},
		StoreBackend: getEnv("STORE_BACKEND", "postgres"),

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			TTL:      getEnvAsDuration("REDIS_SELECTOR_TTL", "24h"),
		},

		Compose: ComposeConfig{
			PolicyFile:      getEnv("POLICY_FILE", "config/index_policies.yaml"),
			Schedule:        getEnv("COMPOSE_SCHEDULE", "0 30 18 * * 1-5"), // 평일 18:30, after ingestion
			BreakerFailures: uint32(getEnvAsInt("STORE_BREAKER_FAILURES", 3)),
			BreakerTimeout:  getEnvAsDuration("STORE_BREAKER_TIMEOUT", "30s"),

			Gate:              getEnvAsBool("QUALITY_GATE", true),
			MinPriceCoverage:  getEnvAsFloat("QUALITY_MIN_PRICE_COVERAGE", 0.95),
			MinFactorCoverage: getEnvAsFloat("QUALITY_MIN_FACTOR_COVERAGE", 0.95),
			MinUnitsCoverage:  getEnvAsFloat("QUALITY_MIN_UNITS_COVERAGE", 0.90),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Master data (calendar, listings) always lives in Postgres
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.StoreBackend {
	case "postgres":
	case "clickhouse":
		if c.ClickHouse.DSN == "" {
			return fmt.Errorf("CLICKHOUSE_DSN is required when STORE_BACKEND=clickhouse")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of: postgres, clickhouse")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
