package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/batchload/internal/seed"
	"github.com/rshade/batchload/pkg/sqlexec"
)

// newSeedCmd creates the seed command, which builds the sample music catalog.
func newSeedCmd(a *app) *cobra.Command {
	var (
		opts   seed.Options
		dsn    string
		driver string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create and fill the sample artist/album/song catalog",
		Long: `Drops and recreates the artist, album and song tables and fills them with
generated rows. The same --seed always produces the same catalog. Every fifth
artist has no albums.`,
		Example: `  # 200 artists in a local SQLite file
  batchload seed --dsn music.db --artists 200

  # A different but reproducible catalog
  batchload seed --dsn music.db --seed 42`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			dbCfg := a.cfg.Database
			if cmd.Flags().Changed("dsn") {
				dbCfg.DSN = dsn
			}
			if cmd.Flags().Changed("driver") {
				dbCfg.Driver = driver
			}

			db, err := sqlexec.Open(cmd.Context(), dbCfg.Options())
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("closing database: %w", closeErr)
				}
			}()

			res, err := seed.Seed(cmd.Context(), db, opts)
			if err != nil {
				return err
			}

			p := message.NewPrinter(language.English)
			_, _ = p.Fprintf(cmd.OutOrStdout(), "Seeded %d artists, %d albums and %d songs\n",
				res.Artists, res.Albums, res.Songs)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "database DSN (overrides database.dsn)")
	cmd.Flags().StringVar(&driver, "driver", "", "database driver: sqlite, mysql or pgx")
	cmd.Flags().IntVar(&opts.Artists, "artists", seed.DefaultArtists, "number of artists")
	cmd.Flags().IntVar(&opts.MaxAlbums, "max-albums", seed.DefaultMaxAlbums, "maximum albums per artist")
	cmd.Flags().IntVar(&opts.MaxSongs, "max-songs", seed.DefaultMaxSongs, "maximum songs per album")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")

	return cmd
}
