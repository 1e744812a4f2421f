package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/dossier/internal/core/db"
	"github.com/solatis/dossier/internal/snapshot"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace a project's conditions in the database with a snapshot file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("project", "default", "project to replace")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url required")
	}

	snap, err := snapshot.LoadFile(args[0])
	if err != nil {
		return err
	}
	// Refuse to store a snapshot evaluation would reject outright.
	engine, err := newEngine(cfg, logger, nil, nil)
	if err != nil {
		return err
	}
	for _, root := range snap.Roots() {
		if err := engine.Validate(ctx, root, snap, nil); err != nil {
			return fmt.Errorf("condition %s: %w", root.Common().ID, err)
		}
	}

	database, err := db.Open(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.MigrateUp(database); err != nil {
		return err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	project, _ := cmd.Flags().GetString("project")
	if err := snapshot.StoreSQL(ctx, queries, project, snap); err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	logger.Info("snapshot imported",
		"project", project,
		"conditions", len(snap.Roots()),
		"lexicons", len(snap.Lexicons()))
	return nil
}
