// Package config loads runtime configuration from environment variables.
package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	// Port is the HTTP listen port.
	// Environment variable: PORT
	Port string `koanf:"PORT"`

	// UseMemoryStore selects the in-memory store for local development.
	// Environment variable: USE_MEMORY_STORE
	UseMemoryStore bool `koanf:"USE_MEMORY_STORE"`

	// ProjectID is the Google Cloud project for the Firestore store.
	// Environment variable: GOOGLE_CLOUD_PROJECT
	ProjectID string `koanf:"GOOGLE_CLOUD_PROJECT"`

	// LogLevel sets the logrus level (debug, info, warn, error).
	// Environment variable: LOG_LEVEL
	LogLevel string `koanf:"LOG_LEVEL"`
}

// Load reads configuration from the process environment and applies
// defaults.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := &Config{
		Port:     "8111",
		LogLevel: "info",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
