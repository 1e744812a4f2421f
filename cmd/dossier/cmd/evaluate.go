package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/solatis/dossier/internal/core/metrics"
	"github.com/solatis/dossier/internal/rules"
	"github.com/solatis/dossier/internal/source"
	"github.com/solatis/dossier/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a condition against documents",
	Long: `Evaluate one condition from a snapshot against every document matched by
a glob. One JSON result is printed per document.

Examples:
  dossier evaluate --snapshot rules.yaml --condition adult-author --docs 'inbox/**/*.yaml'
  dossier evaluate --db-url sqlite://dossier.db --project legal --condition c1 --docs '*.json' --progress`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	f := evaluateCmd.Flags()
	f.String("snapshot", "", "snapshot file (YAML or JSON); defaults to the database")
	f.String("project", "default", "project whose conditions are loaded from the database")
	f.String("condition", "", "id of the condition to evaluate")
	f.String("docs", "", "doublestar glob of document files, relative to --root")
	f.String("root", ".", "directory the --docs glob is resolved in")
	f.Bool("full-evaluation", false, "evaluate every OR branch for complete diagnostics")
	f.Bool("partial-metadata", false, "treat missing fields as unevaluated instead of unmatched")
	f.String("scope", "", "scope id forwarded to the agent (defaults to --project)")
	f.String("agent-addr", "", "external agent address (overrides agent.address)")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile after the run")
	evaluateCmd.MarkFlagRequired("condition")
	evaluateCmd.MarkFlagRequired("docs")
}

type documentReport struct {
	Path   string        `json:"path"`
	ID     string        `json:"document_id"`
	Result *rules.Result `json:"result"`
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	f := cmd.Flags()

	cfg, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if f.Changed("agent-addr") {
		cfg.Agent.Address, _ = f.GetString("agent-addr")
	}
	if f.Changed("full-evaluation") {
		cfg.Engine.FullEvaluation, _ = f.GetBool("full-evaluation")
	}

	snapshotFile, _ := f.GetString("snapshot")
	project, _ := f.GetString("project")
	snap, err := loadSnapshot(ctx, cfg, snapshotFile, project)
	if err != nil {
		return err
	}

	conditionID, _ := f.GetString("condition")
	cond, err := snap.Condition(types.ConditionID(conditionID))
	if err != nil {
		return err
	}

	root, _ := f.GetString("root")
	pattern, _ := f.GetString("docs")
	partial, _ := f.GetBool("partial-metadata")
	fsys := os.DirFS(root)
	paths, err := source.Glob(fsys, pattern)
	if err != nil {
		return err
	}
	docs := make([]*rules.Document, 0, len(paths))
	for _, p := range paths {
		src, err := source.LoadFile(fsys, p)
		if err != nil {
			return err
		}
		docs = append(docs, rules.NewDocument(src, !partial))
	}
	logger.Info("documents loaded", "count", len(docs), "pattern", pattern)

	client, err := dialAgent(cfg, logger)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	registry := prometheus.NewRegistry()
	engine, err := newEngine(cfg, logger, client, metrics.New(registry))
	if err != nil {
		return err
	}

	scope, _ := f.GetString("scope")
	if scope == "" {
		scope = project
	}
	collection := rules.CollectionContext{
		ID:             project,
		ScopeID:        scope,
		FullEvaluation: cfg.Engine.FullEvaluation,
	}

	var bar *progressbar.ProgressBar
	if show, _ := f.GetBool("progress"); show {
		bar = progressbar.NewOptions(len(docs),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("[cyan]Evaluating[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprintln(cmd.ErrOrStderr())
			}),
		)
	}

	start := time.Now()
	enc := json.NewEncoder(cmd.OutOrStdout())
	matched := 0
	batch := cfg.Engine.Workers * 4
	for lo := 0; lo < len(docs); lo += batch {
		hi := min(lo+batch, len(docs))
		results, err := engine.EvaluateAll(ctx, collection, docs[lo:hi], cond, snap)
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		for i, res := range results {
			if res.Match {
				matched++
			}
			report := documentReport{Path: paths[lo+i], ID: string(docs[lo+i].ID()), Result: res}
			if err := enc.Encode(report); err != nil {
				return err
			}
		}
		if bar != nil {
			bar.Add(hi - lo)
		}
	}

	logger.Info("evaluation complete",
		"condition_id", conditionID,
		"documents", len(docs),
		"matched", matched,
		"duration", time.Since(start))

	if path, _ := f.GetString("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
