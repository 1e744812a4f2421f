package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/dossier/internal/core/metrics"
	"github.com/solatis/dossier/internal/rules"
	"github.com/solatis/dossier/internal/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every condition in a snapshot for configuration errors",
	Long: `Validate walks every root condition of a snapshot, following fragments, and
reports the configuration errors evaluation would raise. When an agent is
configured, text expressions are also checked by the agent.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	f := validateCmd.Flags()
	f.String("snapshot", "", "snapshot file (YAML or JSON); defaults to the database")
	f.String("project", "default", "project whose conditions are loaded from the database")
	f.String("agent-addr", "", "external agent address (overrides agent.address)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := cmd.Flags()

	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if f.Changed("agent-addr") {
		cfg.Agent.Address, _ = f.GetString("agent-addr")
	}

	snapshotFile, _ := f.GetString("snapshot")
	project, _ := f.GetString("project")
	snap, err := loadSnapshot(ctx, cfg, snapshotFile, project)
	if err != nil {
		return err
	}

	client, err := dialAgent(cfg, logger)
	if err != nil {
		return err
	}
	var validator rules.ExpressionValidator
	if client != nil {
		defer client.Close()
		validator = client
	}

	engine, err := newEngine(cfg, logger, client, metrics.New(nil))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, root := range snap.Roots() {
		id := root.Common().ID
		err := engine.Validate(ctx, root, snap, validator)
		if err == nil {
			fmt.Fprintf(out, "ok      %s\n", id)
			continue
		}
		failed++
		fmt.Fprintf(out, "invalid %s\n", id)
		for _, e := range unjoin(err) {
			fmt.Fprintf(out, "        %v\n", e)
			if !types.IsConfigurationError(e) {
				logger.Warn("validation incomplete", "condition_id", id, "error", e)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d conditions invalid", failed, len(snap.Roots()))
	}
	return nil
}

// unjoin splits an errors.Join result into its parts.
func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
