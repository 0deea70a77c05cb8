package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/batchload/internal/config"
	"github.com/rshade/batchload/internal/plan"
)

// newConfigValidateCmd creates the config validate command.
func newConfigValidateCmd(a *app) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the configuration file for syntax and semantic correctness.

This includes:
- Database driver and DSN presence
- Batch size and prefetch bounds
- Plan structure:
  - Required columns and queries on every table
  - Sort expression syntax
  - Label template syntax
  - Duplicate child table names`,
		Example: `  # Validate batchload.yaml
  batchload config validate

  # Validate another file and show the plan
  batchload config validate --config plan.yaml --verbose`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireConfig(); err != nil {
				return err
			}
			return runConfigValidate(cmd, a.cfg, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, cfg *config.Config, verbose bool) error {
	if err := cfg.Validate(); err != nil {
		cmd.PrintErrln("Configuration errors:")
		for _, line := range strings.Split(err.Error(), "\n") {
			cmd.PrintErrf("  - %s\n", line)
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	p, err := plan.Build(cfg.Plan)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("✅ Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg, p)
	}
	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config, p *plan.Plan) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Driver: %s\n", cfg.Database.Driver)
	cmd.Printf("  Batch size: %d\n", cfg.Loader.BatchSize)
	cmd.Printf("  Prefetch: %d\n", cfg.Loader.Prefetch)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	if cfg.Output.Format != "" {
		cmd.Printf("  Output format: %s\n", cfg.Output.Format)
	} else {
		cmd.Println("  Output format: auto")
	}

	cmd.Printf("  Plan: %d tables, depth %d\n", len(p.Layout.Tables()), p.Layout.Depth())
	printLevel(cmd, p.Layout, 2)
}

// printLevel prints the table tree.
func printLevel(cmd *cobra.Command, l plan.Level, indent int) {
	cmd.Printf("%s- %s (id: %s)\n", strings.Repeat(" ", indent), l.Name, l.IDColumn)
	for _, ch := range l.Children {
		printLevel(cmd, ch, indent+2)
	}
}
