// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment names the deployment tier, used only to gate
// production-safety validation.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds every recognized option from spec.md §9.
type Config struct {
	Environment Environment

	ListenPort      int
	ShutdownGraceMs int

	HotStoreAddress  string
	DurableStoreDSN  string
	KeyPrefix        string

	SessionTTLSeconds        int
	VersionConflictRetryMax  int

	AuditRetryAttempts int
	AuditBackoffBaseMs int

	HeartbeatIntervalMs int

	RateLimitGeneralPerMinute int
	RateLimitSwitchPerSecond int

	LogLevel  string
	LogFormat string
}

// Load reads TURNSYNC_ENV (default "development"), optionally seeds the
// environment from a ".env.<environment>" file (silently skipped when
// absent), then populates Config from the environment.
func Load() (*Config, error) {
	env := Environment(strings.ToLower(strings.TrimSpace(os.Getenv("TURNSYNC_ENV"))))
	if env == "" {
		env = Development
	}

	envFile := fmt.Sprintf(".env.%s", env)
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
	}

	cfg := loadFromEnv(env)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv(env Environment) *Config {
	return &Config{
		Environment: env,

		ListenPort:      getIntEnv("LISTEN_PORT", 8080),
		ShutdownGraceMs: getIntEnv("SHUTDOWN_GRACE_MS", 15000),

		HotStoreAddress: getEnv("HOT_STORE_ADDRESS", "localhost:6379"),
		DurableStoreDSN: getEnv("DURABLE_STORE_DSN", ""),
		KeyPrefix:       getEnv("KEY_PREFIX", ""),

		SessionTTLSeconds:       getIntEnv("SESSION_TTL_SECONDS", 3600),
		VersionConflictRetryMax: getIntEnv("VERSION_CONFLICT_RETRY_MAX", 3),

		AuditRetryAttempts: getIntEnv("AUDIT_RETRY_ATTEMPTS", 5),
		AuditBackoffBaseMs: getIntEnv("AUDIT_BACKOFF_BASE_MS", 2000),

		HeartbeatIntervalMs: getIntEnv("HEARTBEAT_INTERVAL_MS", 5000),

		RateLimitGeneralPerMinute: getIntEnv("RATE_LIMIT_GENERAL_PER_MINUTE", 100),
		RateLimitSwitchPerSecond:  getIntEnv("RATE_LIMIT_SWITCH_PER_SECOND", 10),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate enforces production-safety invariants; non-production tiers
// are permissive about placeholder values.
func (c *Config) Validate() error {
	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("config: listen_port %d out of range", c.ListenPort)
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("config: session_ttl_seconds must be positive")
	}
	if c.VersionConflictRetryMax <= 0 {
		return fmt.Errorf("config: version_conflict_retry_max must be positive")
	}
	if c.AuditRetryAttempts <= 0 {
		return fmt.Errorf("config: audit_retry_attempts must be positive")
	}
	if c.RateLimitGeneralPerMinute <= 0 || c.RateLimitSwitchPerSecond <= 0 {
		return fmt.Errorf("config: rate limit budgets must be positive")
	}

	if c.Environment == Production {
		if c.HotStoreAddress == "" {
			return errors.New("config: hot_store_address is required in production")
		}
		if c.DurableStoreDSN == "" {
			return errors.New("config: durable_store_dsn is required in production")
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == Development }
func (c *Config) IsTesting() bool     { return c.Environment == Testing }
func (c *Config) IsProduction() bool  { return c.Environment == Production }

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getBoolEnv(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
