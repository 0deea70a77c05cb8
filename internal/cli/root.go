// Package cli implements the batchload command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/batchload/internal/config"
	"github.com/rshade/batchload/internal/logging"
)

// DefaultConfigPath is read when --config is not given and the file exists.
const DefaultConfigPath = "batchload.yaml"

// isTerminal checks if the given writer is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// app carries state shared by the commands of one invocation.
type app struct {
	lookupEnv  func(string) (string, bool)
	configPath string
	loaded     bool
	cfg        *config.Config
	logger     zerolog.Logger
	logResult  *logging.LogPathResult
}

// NewRootCmd creates the root Cobra command for the batchload CLI.
func NewRootCmd(ver string) *cobra.Command {
	return NewRootCmdWithEnv(ver, os.LookupEnv)
}

// NewRootCmdWithEnv creates the root command with an explicit env lookup for
// testability.
func NewRootCmdWithEnv(ver string, lookupEnv func(string) (string, bool)) *cobra.Command {
	return newRootCmd(&app{lookupEnv: lookupEnv, logger: zerolog.Nop()}, ver)
}

func newRootCmd(a *app, ver string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "batchload",
		Short:         "Load a table and its dependent tables in ordered batches",
		Long:          "batchload: Walk a primary table in batches, bulk-loading child rows one query per table per batch",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd, a)
			a.logResult = &result
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return cleanupLogging(a)
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		fmt.Sprintf("config file (default %s when present)", DefaultConfigPath))
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	cmd.AddCommand(
		newRunCmd(a),
		newSeedCmd(a),
		newConfigCmd(a),
		newVersionCmd(ver),
	)
	closeLogOnExit(cmd, a)
	return cmd
}

// closeLogOnExit wraps the RunE of cmd and its subcommands so the log file
// is closed whether or not the command fails.
func closeLogOnExit(cmd *cobra.Command, a *app) {
	for _, sub := range cmd.Commands() {
		closeLogOnExit(sub, a)
	}
	runE := cmd.RunE
	if runE == nil {
		return
	}
	cmd.RunE = func(c *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := cleanupLogging(a); closeErr != nil && err == nil {
				err = fmt.Errorf("closing log file: %w", closeErr)
			}
		}()
		return runE(c, args)
	}
}

// loadConfig reads the config file when it exists, then applies environment
// overrides. Commands that need a plan call requireConfig.
func (a *app) loadConfig(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("config") {
		a.configPath = DefaultConfigPath
	}

	cfg := config.New()
	_, statErr := os.Stat(a.configPath)
	switch {
	case statErr == nil:
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		a.loaded = true
	case !errors.Is(statErr, os.ErrNotExist):
		return fmt.Errorf("cannot access config path %s: %w", a.configPath, statErr)
	}

	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	a.cfg = cfg
	return nil
}

// requireConfig fails when no config file was read.
func (a *app) requireConfig() error {
	if !a.loaded {
		return fmt.Errorf("opening config %s: %w", a.configPath, os.ErrNotExist)
	}
	return nil
}

const rootCmdExample = `  # Create a sample catalog and a matching config
  batchload seed --dsn music.db --artists 200
  batchload config init --dsn music.db

  # Walk artists 50 at a time with albums and songs attached
  batchload run --config batchload.yaml --batch-size 50

  # Load two batches ahead while rendering JSON
  batchload run --prefetch 2 --output json

  # Validate a config file
  batchload config validate --config plan.yaml`

// newConfigCmd creates the config command group.
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(newConfigInitCmd(a), newConfigValidateCmd(a))
	return cmd
}
