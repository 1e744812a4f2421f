package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/solatis/dossier/internal/agent"
	"github.com/solatis/dossier/internal/core/config"
	"github.com/solatis/dossier/internal/core/db"
	"github.com/solatis/dossier/internal/core/logging"
	"github.com/solatis/dossier/internal/core/metrics"
	"github.com/solatis/dossier/internal/rules"
	"github.com/solatis/dossier/internal/snapshot"
)

// loadSettings reads the config file and environment, applies the root
// command flags on top and installs the resulting logger as the default.
func loadSettings(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.Database.URL = dbURL
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// loadSnapshot reads a snapshot file when one is given, otherwise the
// project's rows from the configured database.
func loadSnapshot(ctx context.Context, cfg *config.Config, file, project string) (*snapshot.Memory, error) {
	if file != "" {
		return snapshot.LoadFile(file)
	}
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("--snapshot or --db-url required")
	}

	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}
	snap, err := snapshot.LoadSQL(ctx, queries, project)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for project %s: %w", project, err)
	}
	return snap, nil
}

// dialAgent connects to the external service. It returns nil when no
// address is configured.
func dialAgent(cfg *config.Config, logger *slog.Logger) (*agent.Client, error) {
	if cfg.Agent.Address == "" {
		return nil, nil
	}
	client, err := agent.Dial(agent.Config{
		Address:        cfg.Agent.Address,
		Timeout:        cfg.Agent.Timeout,
		HealthInterval: cfg.Agent.HealthInterval,
		APIKey:         cfg.Agent.APIKey,
	}, agent.WithLogger(logger.With("component", "agent")))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent: %w", err)
	}
	return client, nil
}

// newEngine builds a rules engine from the engine settings.
func newEngine(cfg *config.Config, logger *slog.Logger, client *agent.Client, m *metrics.EvaluationMetrics) (*rules.Engine, error) {
	loc, err := cfg.Engine.Location()
	if err != nil {
		return nil, err
	}

	opts := []rules.Option{
		rules.WithPatternCache(rules.NewPatternCache(cfg.Engine.PatternCacheSize, cfg.Engine.PatternCacheTTL, cfg.Engine.RegexTimeout)),
		rules.WithLocation(loc),
		rules.WithMaxDepth(cfg.Engine.MaxDepth),
		rules.WithWorkers(cfg.Engine.Workers),
		rules.WithLogger(logger.With("component", "rules")),
		rules.WithMetrics(m),
	}
	if client != nil {
		opts = append(opts, rules.WithAgent(client))
	}
	return rules.NewEngine(opts...), nil
}
