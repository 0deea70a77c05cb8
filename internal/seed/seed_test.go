package seed_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/batchload/internal/config"
	"github.com/rshade/batchload/internal/plan"
	"github.com/rshade/batchload/internal/seed"
	"github.com/rshade/batchload/pkg/batch"
	"github.com/rshade/batchload/pkg/sqlexec"
)

func openDB(t *testing.T) *sqlexec.DB {
	t.Helper()
	db, err := sqlexec.Open(context.Background(), sqlexec.Options{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "music.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sqlexec.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.SQL().QueryRowContext(context.Background(), query).Scan(&n))
	return n
}

func TestSeed_Counts(t *testing.T) {
	db := openDB(t)

	res, err := seed.Seed(context.Background(), db, seed.Options{Artists: 12, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, 12, res.Artists)
	assert.Equal(t, res.Artists, count(t, db, "SELECT COUNT(*) FROM artist"))
	assert.Equal(t, res.Albums, count(t, db, "SELECT COUNT(*) FROM album"))
	assert.Equal(t, res.Songs, count(t, db, "SELECT COUNT(*) FROM song"))
	assert.GreaterOrEqual(t, res.Albums, 12-2)
	assert.GreaterOrEqual(t, res.Songs, res.Albums)

	empty := count(t, db, "SELECT COUNT(*) FROM artist WHERE id NOT IN (SELECT artist_id FROM album)")
	assert.Equal(t, 2, empty, "artists 5 and 10 have no albums")
}

func TestSeed_Deterministic(t *testing.T) {
	a, b := openDB(t), openDB(t)
	ctx := context.Background()

	ra, err := seed.Seed(ctx, a, seed.Options{Artists: 8, Seed: 42})
	require.NoError(t, err)
	rb, err := seed.Seed(ctx, b, seed.Options{Artists: 8, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, ra, rb)

	names := func(db *sqlexec.DB) []string {
		rows, err := db.SQL().QueryContext(ctx, "SELECT name FROM artist ORDER BY id")
		require.NoError(t, err)
		defer rows.Close()
		var out []string
		for rows.Next() {
			var s string
			require.NoError(t, rows.Scan(&s))
			out = append(out, s)
		}
		require.NoError(t, rows.Err())
		return out
	}
	assert.Equal(t, names(a), names(b))
}

func TestSeed_Reseed(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	_, err := seed.Seed(ctx, db, seed.Options{Artists: 10, Seed: 1})
	require.NoError(t, err)
	res, err := seed.Seed(ctx, db, seed.Options{Artists: 3, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, count(t, db, "SELECT COUNT(*) FROM artist"))
	assert.Equal(t, res.Albums, count(t, db, "SELECT COUNT(*) FROM album"))
}

func TestSeed_InvalidOptions(t *testing.T) {
	_, err := seed.Seed(context.Background(), openDB(t), seed.Options{Artists: -1})
	require.Error(t, err)
}

func TestSeed_SamplePlanLoadsEveryRow(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	res, err := seed.Seed(ctx, db, seed.Options{Artists: 23, Seed: 3})
	require.NoError(t, err)

	p, err := plan.Build(config.Sample("sqlite", "unused").Plan)
	require.NoError(t, err)

	var (
		artists, albums, songs int
		lastName               string
		noAlbums               int
	)
	err = batch.ProcessInBatches(ctx, db, p.Primary, p.Children, 4,
		func(_ context.Context, rec batch.Record) error {
			artists++
			name, _ := rec.Row["name"].(string)
			assert.LessOrEqual(t, lastName, name, "artists arrive sorted by name")
			lastName = name

			if len(rec.Children["album"]) == 0 {
				noAlbums++
			}
			for _, album := range rec.Children["album"] {
				albums++
				assert.Equal(t, rec.Row["id"], album.Row["artist_id"])
				for _, song := range album.Children["song"] {
					songs++
					assert.Equal(t, album.Row["id"], song.Row["album_id"])
				}
			}
			return nil
		}, batch.WithPrefetch(2))
	require.NoError(t, err)

	assert.Equal(t, res.Artists, artists)
	assert.Equal(t, res.Albums, albums)
	assert.Equal(t, res.Songs, songs)
	assert.Equal(t, 4, noAlbums)

	// keys + rows + album + song per batch, six batches of four.
	assert.Equal(t, int64(1+3*6), db.Stats().Total())
}
