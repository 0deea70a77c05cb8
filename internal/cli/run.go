package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/batchload/internal/config"
	"github.com/rshade/batchload/internal/plan"
	"github.com/rshade/batchload/internal/render"
	"github.com/rshade/batchload/pkg/batch"
	"github.com/rshade/batchload/pkg/sqlexec"
)

// runFlags holds the overrides accepted by the run command.
type runFlags struct {
	batchSize int
	prefetch  int
	dsn       string
	driver    string
	output    string
	overlays  []string
	quiet     bool
}

// newRunCmd creates the run command, which executes the configured plan.
func newRunCmd(a *app) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured plan and render every record",
		Long: `Runs the plan from the config file. Primary rows are split into batches by
their configured ordering; each batch loads every child table with one query
and hands the assembled records to the renderer in order.

Output defaults to text on a terminal and JSON otherwise. A summary is
written to stderr.`,
		Example: `  # Run with the defaults from batchload.yaml
  batchload run

  # Smaller batches with two batches loaded ahead
  batchload run --batch-size 25 --prefetch 2

  # Override the database and write JSON
  batchload run --dsn other.db --output json > records.ndjson

  # Apply an overlay on top of the config file
  batchload run --overlay prod.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, a, flags)
		},
	}

	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "primary rows per batch (overrides loader.batch_size)")
	cmd.Flags().IntVar(&flags.prefetch, "prefetch", 0, "batches to load ahead of the consumer (overrides loader.prefetch)")
	cmd.Flags().StringVar(&flags.dsn, "dsn", "", "database DSN (overrides database.dsn)")
	cmd.Flags().StringVar(&flags.driver, "driver", "", "database driver: sqlite, mysql or pgx (overrides database.driver)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output format: text or json")
	cmd.Flags().StringSliceVar(&flags.overlays, "overlay", nil, "config overlay files applied in order")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress the summary")

	return cmd
}

// applyRunFlags merges overlays and explicitly set flags into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	for _, overlay := range flags.overlays {
		if err := config.ShallowMergeYAML(cfg, overlay); err != nil {
			return err
		}
	}

	if cmd.Flags().Changed("batch-size") {
		cfg.Loader.BatchSize = flags.batchSize
	}
	if cmd.Flags().Changed("prefetch") {
		cfg.Loader.Prefetch = flags.prefetch
	}
	if cmd.Flags().Changed("dsn") {
		cfg.Database.DSN = flags.dsn
	}
	if cmd.Flags().Changed("driver") {
		cfg.Database.Driver = flags.driver
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Format = flags.output
	}
	return nil
}

// outputFormat returns the configured format, or text for terminals and
// JSON otherwise.
func outputFormat(cfg *config.Config, w io.Writer) string {
	if cfg.Output.Format != "" {
		return cfg.Output.Format
	}
	if isTerminal(w) {
		return render.FormatText
	}
	return render.FormatJSON
}

func runPlan(cmd *cobra.Command, a *app, flags runFlags) (err error) {
	if err = a.requireConfig(); err != nil {
		return err
	}
	ctx := cmd.Context()
	cfg := a.cfg

	if err = applyRunFlags(cmd, cfg, flags); err != nil {
		return err
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := plan.Build(cfg.Plan)
	if err != nil {
		return fmt.Errorf("building plan: %w", err)
	}

	out := cmd.OutOrStdout()
	renderer, err := render.New(outputFormat(cfg, out), out, p.Layout)
	if err != nil {
		return err
	}

	db, err := sqlexec.Open(ctx, cfg.Database.Options())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing database: %w", closeErr)
		}
	}()

	proc, err := batch.NewProcessor(db, p.Primary, p.Children, cfg.Loader.BatchSize,
		batch.WithPrefetch(cfg.Loader.Prefetch),
		batch.WithBatchHook(func(s batch.BatchStats) {
			a.logger.Debug().
				Int("batch", s.Batch).
				Int("rows", s.Rows).
				Int("child_rows", s.ChildRows).
				Int("orphan_rows", s.OrphanRows).
				Dur("duration", s.Duration).
				Msg("batch rendered")
		}),
	)
	if err != nil {
		return err
	}

	runErr := proc.Run(ctx, render.Consumer(renderer))
	if flushErr := renderer.Flush(); flushErr != nil && runErr == nil {
		runErr = fmt.Errorf("writing output: %w", flushErr)
	}
	if runErr != nil {
		return runErr
	}

	if !flags.quiet {
		printSummary(cmd.ErrOrStderr(), proc.Progress(), db.Stats())
	}
	return nil
}

// printSummary writes run totals with locale-aware number formatting.
func printSummary(w io.Writer, snap batch.ProgressSnapshot, stats sqlexec.StatsSnapshot) {
	p := message.NewPrinter(language.English)
	_, _ = p.Fprintf(w, "Loaded %d rows and %d child rows in %d batches (%d queries, %v)\n",
		snap.DeliveredRows, snap.ChildRows, snap.DeliveredBatches, stats.Total(), snap.ElapsedTime.Round(time.Millisecond))
	if snap.OrphanRows > 0 {
		_, _ = p.Fprintf(w, "Skipped %d child rows without a parent in their batch\n", snap.OrphanRows)
	}
}
