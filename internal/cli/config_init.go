package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rshade/batchload/internal/config"
)

// newConfigInitCmd creates the config init command, which writes a sample
// configuration for the seeded music catalog.
func newConfigInitCmd(a *app) *cobra.Command {
	var (
		force  bool
		dsn    string
		driver string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration for the seeded catalog",
		Long: `Creates a configuration file with the artist/album/song plan used by
"batchload seed". The file is written to --config, or batchload.yaml.`,
		Example: `  # Create batchload.yaml for music.db
  batchload config init --dsn music.db

  # Overwrite an existing file
  batchload config init --dsn music.db --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.configPath

			if !force {
				_, err := os.Stat(path)
				if err == nil {
					return errors.New("configuration file already exists, use --force to overwrite")
				}
				if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("cannot access config path %s: %w", path, err)
				}
			}

			cfg := config.Sample(driver, dsn)
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			cmd.Printf("Configuration initialized at %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().StringVar(&dsn, "dsn", "music.db", "database DSN")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "database driver: sqlite, mysql or pgx")

	return cmd
}
