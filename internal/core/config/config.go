// Package config provides configuration management for Dossier commands.
package config

import (
	"fmt"
	"os"
	"time"
)

// APIKeyEnv holds the external service API key. It is never read from a
// config file.
const APIKeyEnv = "DOSSIER_AGENT_API_KEY"

// EngineConfig tunes the condition evaluation engine.
type EngineConfig struct {
	PatternCacheSize int
	PatternCacheTTL  time.Duration
	RegexTimeout     time.Duration
	MaxDepth         int
	FullEvaluation   bool
	Timezone         string
	Workers          int
}

// AgentConfig locates the external text-classification service. An empty
// Address disables it.
type AgentConfig struct {
	Address        string
	Timeout        time.Duration
	HealthInterval time.Duration
	APIKey         string
}

// DatabaseConfig holds the snapshot store location.
type DatabaseConfig struct {
	URL string
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// Config is the full command configuration.
type Config struct {
	Engine   EngineConfig
	Agent    AgentConfig
	Database DatabaseConfig
	Logging  LoggingConfig
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			PatternCacheSize: 1024,
			PatternCacheTTL:  10 * time.Minute,
			RegexTimeout:     100 * time.Millisecond,
			MaxDepth:         64,
			Timezone:         "Local",
			Workers:          4,
		},
		Agent: AgentConfig{
			Timeout:        5 * time.Second,
			HealthInterval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// AgentAPIKey returns the external service API key from the environment.
func AgentAPIKey() string {
	return os.Getenv(APIKeyEnv)
}

// Location resolves the engine time zone.
func (c EngineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone: %w", err)
	}
	return loc, nil
}
