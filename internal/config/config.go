// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration.
type Config struct {
	API    APIConfig
	Store  StoreConfig
	Sync   SyncConfig
	Draft  DraftConfig
	Server ServerConfig
	Logging LoggingConfig
}

// APIConfig configures the remote API client.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// StoreConfig configures the local store.
type StoreConfig struct {
	DataDir string
}

// SyncConfig configures the reconciler and scheduler.
type SyncConfig struct {
	Interval   time.Duration // background pass interval while online
	MaxRetries int           // retry ceiling per queue item
	ItemDelay  time.Duration // throttle between successive queue items
}

// DraftConfig configures the draft manager.
type DraftConfig struct {
	AutosaveInterval time.Duration
	TTL              time.Duration
}

// ServerConfig configures the local status server.
type ServerConfig struct {
	Port string
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string
}

// Load reads configuration from the environment, applying defaults.
// A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	godotenv.Load()

	apiTimeout, err := getEnvAsDuration("API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	syncInterval, err := getEnvAsDuration("SYNC_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	itemDelay, err := getEnvAsDuration("SYNC_ITEM_DELAY", 100*time.Millisecond)
	if err != nil {
		return nil, err
	}
	autosave, err := getEnvAsDuration("DRAFT_AUTOSAVE_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}
	draftTTL, err := getEnvAsDuration("DRAFT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
			Timeout: apiTimeout,
		},
		Store: StoreConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		Sync: SyncConfig{
			Interval:   syncInterval,
			MaxRetries: getEnvAsInt("SYNC_MAX_RETRIES", 5),
			ItemDelay:  itemDelay,
		},
		Draft: DraftConfig{
			AutosaveInterval: autosave,
			TTL:              draftTTL,
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8091"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
