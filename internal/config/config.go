// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port       string
	AdminToken string
	DBPath     string

	// Session/liveness windows for the dispatch engine.
	SessionTimeout  time.Duration // inactivity before a full session reset
	ResponseTimeout time.Duration // silence before automated sends pause

	// Flow source (published sheet export).
	FlowsURL      string
	FlowsCacheTTL time.Duration

	// AI completion service (OpenAI-compatible endpoint).
	AIBaseURL string
	AIAPIKey  string
	AIModel   string
	AIHistory int // history messages sent as completion context

	// Transport provider gateway.
	GatewayURL string

	// Housekeeping.
	HistoryRetention time.Duration
	CleanupInterval  time.Duration

	// Scheduled broadcasts.
	BroadcastInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "3008"),
		AdminToken:        getEnv("ADMIN_TOKEN", ""),
		DBPath:            getEnv("DB_PATH", "./data/whatsflow.db"),
		SessionTimeout:    getEnvDuration("SESSION_TIMEOUT", 5*time.Minute),
		ResponseTimeout:   getEnvDuration("RESPONSE_TIMEOUT", 60*time.Second),
		FlowsURL:          getEnv("FLOWS_URL", ""),
		FlowsCacheTTL:     getEnvDuration("FLOWS_CACHE_TTL", 30*time.Second),
		AIBaseURL:         getEnv("AI_BASE_URL", "https://api.groq.com/openai/v1"),
		AIAPIKey:          getEnv("AI_API_KEY", ""),
		AIModel:           getEnv("AI_MODEL", "llama-3.1-8b-instant"),
		AIHistory:         getEnvInt("AI_HISTORY_MESSAGES", 10),
		GatewayURL:        getEnv("GATEWAY_URL", "ws://localhost:3001/ws"),
		HistoryRetention:  getEnvDuration("HISTORY_RETENTION", 7*24*time.Hour),
		CleanupInterval:   getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour),
		BroadcastInterval: getEnvDuration("BROADCAST_INTERVAL", time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.FlowsURL == "" {
		return fmt.Errorf("FLOWS_URL cannot be empty")
	}
	if c.GatewayURL == "" {
		return fmt.Errorf("GATEWAY_URL cannot be empty")
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be > 0")
	}
	if c.ResponseTimeout <= 0 {
		return fmt.Errorf("RESPONSE_TIMEOUT must be > 0")
	}
	if c.ResponseTimeout >= c.SessionTimeout {
		return fmt.Errorf("RESPONSE_TIMEOUT must be shorter than SESSION_TIMEOUT")
	}
	if c.AIHistory < 0 {
		return fmt.Errorf("AI_HISTORY_MESSAGES must be >= 0")
	}
	return nil
}

// AIEnabled returns true if the AI fallback adapter is configured.
func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
