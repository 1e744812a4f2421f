package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	def := DefaultConfig()
	v.SetDefault("engine.pattern_cache_size", def.Engine.PatternCacheSize)
	v.SetDefault("engine.pattern_cache_ttl", def.Engine.PatternCacheTTL.String())
	v.SetDefault("engine.regex_timeout", def.Engine.RegexTimeout.String())
	v.SetDefault("engine.max_depth", def.Engine.MaxDepth)
	v.SetDefault("engine.full_evaluation", def.Engine.FullEvaluation)
	v.SetDefault("engine.timezone", def.Engine.Timezone)
	v.SetDefault("engine.workers", def.Engine.Workers)
	v.SetDefault("agent.address", def.Agent.Address)
	v.SetDefault("agent.timeout", def.Agent.Timeout.String())
	v.SetDefault("agent.health_interval", def.Agent.HealthInterval.String())
	v.SetDefault("database.url", "")
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)

	// Bind environment variables with DOSSIER_ prefix
	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Engine: EngineConfig{
			PatternCacheSize: v.GetInt("engine.pattern_cache_size"),
			PatternCacheTTL:  v.GetDuration("engine.pattern_cache_ttl"),
			RegexTimeout:     v.GetDuration("engine.regex_timeout"),
			MaxDepth:         v.GetInt("engine.max_depth"),
			FullEvaluation:   v.GetBool("engine.full_evaluation"),
			Timezone:         v.GetString("engine.timezone"),
			Workers:          v.GetInt("engine.workers"),
		},
		Agent: AgentConfig{
			Address:        v.GetString("agent.address"),
			Timeout:        v.GetDuration("agent.timeout"),
			HealthInterval: v.GetDuration("agent.health_interval"),
			APIKey:         AgentAPIKey(),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks positive sizes and durations, the time zone and the
// logging settings.
func validateConfig(cfg *Config) error {
	e := cfg.Engine
	if e.PatternCacheSize <= 0 {
		return fmt.Errorf("engine.pattern_cache_size must be positive, got %d", e.PatternCacheSize)
	}
	if e.PatternCacheTTL <= 0 {
		return fmt.Errorf("engine.pattern_cache_ttl must be positive, got %v", e.PatternCacheTTL)
	}
	if e.RegexTimeout <= 0 {
		return fmt.Errorf("engine.regex_timeout must be positive, got %v", e.RegexTimeout)
	}
	if e.MaxDepth <= 0 {
		return fmt.Errorf("engine.max_depth must be positive, got %d", e.MaxDepth)
	}
	if e.Workers <= 0 {
		return fmt.Errorf("engine.workers must be positive, got %d", e.Workers)
	}
	if _, err := e.Location(); err != nil {
		return err
	}

	if cfg.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive, got %v", cfg.Agent.Timeout)
	}
	if cfg.Agent.HealthInterval <= 0 {
		return fmt.Errorf("agent.health_interval must be positive, got %v", cfg.Agent.HealthInterval)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", cfg.Logging.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("agent.api_key") || v.InConfig("api_key") {
		return fmt.Errorf("API keys not allowed in config files (use %s environment variable)", APIKeyEnv)
	}
	return nil
}
