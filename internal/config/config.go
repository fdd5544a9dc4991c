package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string
	NumWorkers  int

	DeliveryTimeout   time.Duration
	BackoffUnit       time.Duration
	DefaultRetryCount int

	TestRatePerMinute      int
	HealthFailureThreshold int

	AdminJWTSecret string
	LogLevel       string
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE.
type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
	Storage struct {
		DatabaseURL string `yaml:"database_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"storage"`
	Delivery struct {
		Workers      int    `yaml:"workers"`
		Timeout      string `yaml:"timeout"`
		BackoffUnit  string `yaml:"backoff_unit"`
		RetryCount   int    `yaml:"retry_count"`
		TestPerMin   int    `yaml:"test_rate_per_minute"`
		FailingAfter int    `yaml:"health_failure_threshold"`
	} `yaml:"delivery"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

func defaults() Config {
	return Config{
		Port:                   "8080",
		NumWorkers:             50,
		DeliveryTimeout:        10 * time.Second,
		BackoffUnit:            time.Second,
		DefaultRetryCount:      3,
		TestRatePerMinute:      6,
		HealthFailureThreshold: 5,
		LogLevel:               "info",
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.applyFile(raw); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.NumWorkers = getEnvInt("NUM_WORKERS", cfg.NumWorkers)
	cfg.DeliveryTimeout = getEnvDuration("DELIVERY_TIMEOUT", cfg.DeliveryTimeout)
	cfg.BackoffUnit = getEnvDuration("BACKOFF_UNIT", cfg.BackoffUnit)
	cfg.DefaultRetryCount = getEnvInt("DEFAULT_RETRY_COUNT", cfg.DefaultRetryCount)
	cfg.TestRatePerMinute = getEnvInt("TEST_RATE_PER_MINUTE", cfg.TestRatePerMinute)
	cfg.HealthFailureThreshold = getEnvInt("HEALTH_FAILURE_THRESHOLD", cfg.HealthFailureThreshold)
	cfg.AdminJWTSecret = getEnv("ADMIN_JWT_SECRET", cfg.AdminJWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if f.Server.Port != "" {
		c.Port = f.Server.Port
	}
	if f.Server.LogLevel != "" {
		c.LogLevel = f.Server.LogLevel
	}
	if f.Storage.DatabaseURL != "" {
		c.DatabaseURL = f.Storage.DatabaseURL
	}
	if f.Storage.RedisURL != "" {
		c.RedisURL = f.Storage.RedisURL
	}
	if f.Delivery.Workers > 0 {
		c.NumWorkers = f.Delivery.Workers
	}
	if f.Delivery.RetryCount > 0 {
		c.DefaultRetryCount = f.Delivery.RetryCount
	}
	if f.Delivery.TestPerMin > 0 {
		c.TestRatePerMinute = f.Delivery.TestPerMin
	}
	if f.Delivery.FailingAfter > 0 {
		c.HealthFailureThreshold = f.Delivery.FailingAfter
	}
	if f.Auth.JWTSecret != "" {
		c.AdminJWTSecret = f.Auth.JWTSecret
	}

	var err error
	if f.Delivery.Timeout != "" {
		if c.DeliveryTimeout, err = time.ParseDuration(f.Delivery.Timeout); err != nil {
			return fmt.Errorf("parsing delivery.timeout: %w", err)
		}
	}
	if f.Delivery.BackoffUnit != "" {
		if c.BackoffUnit, err = time.ParseDuration(f.Delivery.BackoffUnit); err != nil {
			return fmt.Errorf("parsing delivery.backoff_unit: %w", err)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.NumWorkers <= 0:
		return fmt.Errorf("NUM_WORKERS must be positive, got %d", c.NumWorkers)
	case c.DeliveryTimeout <= 0:
		return fmt.Errorf("DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	case c.BackoffUnit <= 0:
		return fmt.Errorf("BACKOFF_UNIT must be positive, got %s", c.BackoffUnit)
	case c.DefaultRetryCount < 1 || c.DefaultRetryCount > 10:
		return fmt.Errorf("DEFAULT_RETRY_COUNT must be between 1 and 10, got %d", c.DefaultRetryCount)
	case c.TestRatePerMinute < 0:
		return fmt.Errorf("TEST_RATE_PER_MINUTE must not be negative, got %d", c.TestRatePerMinute)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// AuthEnabled reports whether admin requests must carry a token.
func (c *Config) AuthEnabled() bool {
	return c.AdminJWTSecret != ""
}

// ParseLevel maps LOG_LEVEL to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
