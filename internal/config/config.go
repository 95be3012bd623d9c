package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	MigrationsPath string

	// Auth
	JWTSecret         string
	MaintenanceAPIKey string

	// Engine
	SweepInterval      time.Duration // 0 disables the in-process sweep
	SweepConcurrency   int
	AggregationTimeout time.Duration

	// Active budget cache
	CacheSize int
	CacheTTL  time.Duration

	// Events (disabled without AMQPURL)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "famledger"),
		DBPassword:     getEnv("DB_PASSWORD", "famledger"),
		DBName:         getEnv("DB_NAME", "famledger"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		JWTSecret:         getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		MaintenanceAPIKey: os.Getenv("MAINTENANCE_API_KEY"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "famledger.budgets"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "famledger.scope-events"),
	}

	var err error
	if config.SweepInterval, err = parseDuration("SWEEP_INTERVAL", time.Hour, true); err != nil {
		return nil, err
	}
	if config.AggregationTimeout, err = parseDuration("AGGREGATION_TIMEOUT", 10*time.Second, false); err != nil {
		return nil, err
	}
	if config.CacheTTL, err = parseDuration("ACTIVE_BUDGET_CACHE_TTL", 5*time.Minute, true); err != nil {
		return nil, err
	}
	if config.SweepConcurrency, err = parsePositiveInt("SWEEP_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if config.CacheSize, err = parsePositiveInt("ACTIVE_BUDGET_CACHE_SIZE", 1024); err != nil {
		return nil, err
	}
	if config.DBMaxOpenConns, err = parsePositiveInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the application configuration. Used by tests and tools that
// build their configuration without the environment.
func Set(c *Config) {
	appConfig = c
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key string, defaultVal time.Duration, allowZero bool) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be positive, got %v", key, d)
	}
	return d, nil
}

func parsePositiveInt(key string, defaultVal int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1, got %d", key, n)
	}
	return n, nil
}
