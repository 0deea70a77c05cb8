package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/batchload/internal/logging"
)

// setupLogging configures logging from the loaded config and CLI flags.
func setupLogging(cmd *cobra.Command, a *app) logging.LogPathResult {
	loggingCfg := a.cfg.Logging

	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	result := logging.NewLoggerWithPath(loggingCfg.ToLoggingConfig())

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)

	base := result.Logger.With().Str("trace_id", traceID).Logger()
	a.logger = logging.ComponentLogger(base, "cli")
	ctx = base.WithContext(ctx)
	cmd.SetContext(ctx)

	a.logger.Info().Str("command", cmd.Name()).Str("config", a.configPath).Msg("command started")

	return result
}

// cleanupLogging closes the log file handle.
func cleanupLogging(a *app) error {
	if a.logResult != nil {
		return a.logResult.Close()
	}
	return nil
}
