// Package seed creates a deterministic sample music catalog.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/rshade/batchload/internal/logging"
	"github.com/rshade/batchload/pkg/batch"
	"github.com/rshade/batchload/pkg/sqlexec"
)

// Defaults for Options.
const (
	DefaultArtists   = 50
	DefaultMaxAlbums = 4
	DefaultMaxSongs  = 8

	// Every emptyEvery-th artist gets no albums.
	emptyEvery = 5
)

//nolint:gochecknoglobals // DDL shared by every driver.
var schema = []string{
	"DROP TABLE IF EXISTS song",
	"DROP TABLE IF EXISTS album",
	"DROP TABLE IF EXISTS artist",
	`CREATE TABLE artist (
	id INTEGER PRIMARY KEY,
	name VARCHAR(128) NOT NULL,
	country VARCHAR(64) NOT NULL
)`,
	`CREATE TABLE album (
	id INTEGER PRIMARY KEY,
	artist_id INTEGER NOT NULL REFERENCES artist (id),
	title VARCHAR(128) NOT NULL,
	year INTEGER NOT NULL
)`,
	`CREATE TABLE song (
	id INTEGER PRIMARY KEY,
	album_id INTEGER NOT NULL REFERENCES album (id),
	track INTEGER NOT NULL,
	title VARCHAR(128) NOT NULL,
	seconds INTEGER NOT NULL
)`,
	"CREATE INDEX album_artist_idx ON album (artist_id)",
	"CREATE INDEX song_album_idx ON song (album_id)",
}

//nolint:gochecknoglobals // Word lists for generated names.
var (
	adjectives = []string{"Blue", "Silent", "Electric", "Midnight", "Golden", "Broken", "Velvet", "Northern", "Paper", "Burning"}
	nouns      = []string{"Horizon", "Echo", "River", "Signal", "Garden", "Engine", "Harbor", "Lantern", "Orbit", "Canyon"}
	countries  = []string{"US", "UK", "SE", "JP", "BR", "NG", "DE", "FR", "CA", "AU"}
)

// Options control the size and shape of the catalog.
type Options struct {
	Artists   int
	Seed      uint64
	MaxAlbums int
	MaxSongs  int
}

func (o *Options) normalize() error {
	if o.Artists == 0 {
		o.Artists = DefaultArtists
	}
	if o.MaxAlbums == 0 {
		o.MaxAlbums = DefaultMaxAlbums
	}
	if o.MaxSongs == 0 {
		o.MaxSongs = DefaultMaxSongs
	}
	if o.Artists < 0 || o.MaxAlbums < 0 || o.MaxSongs < 0 {
		return errors.New("seed counts must be positive")
	}
	return nil
}

// Result counts the inserted rows.
type Result struct {
	Artists int
	Albums  int
	Songs   int
}

// Seed recreates the artist, album and song tables and fills them. The same
// options always produce the same rows.
func Seed(ctx context.Context, db *sqlexec.DB, opts Options) (Result, error) {
	if err := opts.normalize(); err != nil {
		return Result{}, err
	}

	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt, nil); err != nil {
			return Result{}, fmt.Errorf("creating schema: %w", err)
		}
	}

	tx, err := db.SQL().BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("starting transaction: %w", err)
	}

	res, err := fill(ctx, tx, db.Dialect(), opts)
	if err != nil {
		_ = tx.Rollback()
		return Result{}, err
	}
	if err = tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("committing catalog: %w", err)
	}

	logging.FromContext(ctx).Info().
		Str("component", "seed").
		Int("artists", res.Artists).
		Int("albums", res.Albums).
		Int("songs", res.Songs).
		Msg("catalog seeded")
	return res, nil
}

func fill(ctx context.Context, tx *sql.Tx, d sqlexec.Dialect, opts Options) (Result, error) {
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // Reproducible sample data.

	insert := func(template string, params batch.Params) error {
		query, args, err := sqlexec.Compile(template, params, d)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	}

	var res Result
	albumID, songID := 0, 0
	for a := 1; a <= opts.Artists; a++ {
		err := insert("INSERT INTO artist (id, name, country) VALUES (:id, :name, :country)", batch.Params{
			"id":      a,
			"name":    fmt.Sprintf("The %s %s", pick(rng, adjectives), pick(rng, nouns)),
			"country": pick(rng, countries),
		})
		if err != nil {
			return res, fmt.Errorf("inserting artist %d: %w", a, err)
		}
		res.Artists++

		if a%emptyEvery == 0 {
			continue
		}
		for range 1 + rng.IntN(opts.MaxAlbums) {
			albumID++
			err = insert("INSERT INTO album (id, artist_id, title, year) VALUES (:id, :artist, :title, :year)", batch.Params{
				"id":     albumID,
				"artist": a,
				"title":  pick(rng, adjectives) + " " + pick(rng, nouns),
				"year":   1955 + rng.IntN(70),
			})
			if err != nil {
				return res, fmt.Errorf("inserting album %d: %w", albumID, err)
			}
			res.Albums++

			songs := 1 + rng.IntN(opts.MaxSongs)
			for track := 1; track <= songs; track++ {
				songID++
				err = insert("INSERT INTO song (id, album_id, track, title, seconds) VALUES (:id, :album, :track, :title, :seconds)", batch.Params{
					"id":      songID,
					"album":   albumID,
					"track":   track,
					"title":   pick(rng, nouns) + " " + pick(rng, nouns),
					"seconds": 90 + rng.IntN(400),
				})
				if err != nil {
					return res, fmt.Errorf("inserting song %d: %w", songID, err)
				}
				res.Songs++
			}
		}
	}
	return res, nil
}

func pick(rng *rand.Rand, words []string) string {
	return words[rng.IntN(len(words))]
}
