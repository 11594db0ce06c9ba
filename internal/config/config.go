package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ModeSandbox    = "sandbox"
	ModeProduction = "production"
)

// Config holds all configuration for the pipeline.
type Config struct {
	Port     string
	LogLevel string

	// Mode selection. Production additionally requires ProductionConfirmed;
	// BlockProduction forces sandbox regardless of Mode.
	Mode                string
	BlockProduction     bool
	ProductionConfirmed bool

	// Network isolation.
	SandboxIDPrefix     string
	AllowedHostPrefixes []string
	StrictIsolation     bool
	SimLatency          time.Duration
	SimJitter           time.Duration
	SimErrorRate        float64

	// Job queue.
	JobStorePath      string
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	QueuePollInterval time.Duration
	ConnectorTimeout  time.Duration

	// Scheduler.
	StatusPollInterval time.Duration
	CleanupInterval    time.Duration
	JobRetention       time.Duration

	// External stores. Empty DatabaseURL falls back to in-memory claim and
	// audit stores; empty RedisURL disables the rate limiter and breaker.
	DatabaseURL string
	RedisURL    string

	// Per-insurer submissions per second. Zero disables limiting.
	InsurerRateLimit int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Mode:                getEnv("MODE", ModeSandbox),
		BlockProduction:     getBool("BLOCK_PRODUCTION", false),
		ProductionConfirmed: getBool("PRODUCTION_CONFIRMED", false),

		SandboxIDPrefix:     getEnv("SANDBOX_ID_PREFIX", "TEST"),
		AllowedHostPrefixes: getStringSlice("ALLOWED_HOST_PREFIXES", []string{"sandbox.", "test.", "mock.", "dev.", "staging."}),
		StrictIsolation:     getBool("STRICT_ISOLATION", false),
		SimLatency:          getDurationMs("SIM_LATENCY_MS", 150*time.Millisecond),
		SimJitter:           getDurationMs("SIM_JITTER_MS", 100*time.Millisecond),
		SimErrorRate:        getFloat("SIM_ERROR_RATE", 0.05),

		JobStorePath:      getEnv("JOB_STORE_PATH", "data/submission-jobs.json"),
		MaxAttempts:       getInt("MAX_ATTEMPTS", 5),
		RetryBaseDelay:    getDurationMs("RETRY_BASE_DELAY_MS", 2000*time.Millisecond),
		RetryMaxDelay:     getDurationMs("RETRY_MAX_DELAY_MS", 5*time.Minute),
		QueuePollInterval: getDurationMs("QUEUE_POLL_INTERVAL_MS", 500*time.Millisecond),
		ConnectorTimeout:  getDurationMs("CONNECTOR_TIMEOUT_MS", 30*time.Second),

		StatusPollInterval: getDurationMs("STATUS_POLL_INTERVAL_MS", 5*time.Minute),
		CleanupInterval:    getDurationMs("CLEANUP_INTERVAL_MS", 24*time.Hour),
		JobRetention:       getDurationMs("JOB_RETENTION_MS", 7*24*time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		InsurerRateLimit: getInt("INSURER_RATE_LIMIT", 0),
	}

	if cfg.Mode != ModeSandbox && cfg.Mode != ModeProduction {
		return nil, fmt.Errorf("MODE must be %q or %q, got %q", ModeSandbox, ModeProduction, cfg.Mode)
	}
	if cfg.SimErrorRate < 0 || cfg.SimErrorRate > 1 {
		return nil, fmt.Errorf("SIM_ERROR_RATE must be within [0,1]")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// Sandbox reports whether the pipeline must run with synthetic upstreams.
// BlockProduction wins over everything else.
func (c *Config) Sandbox() bool {
	return c.BlockProduction || c.Mode != ModeProduction
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDurationMs(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	return fallback
}

func getStringSlice(key string, fallback []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
