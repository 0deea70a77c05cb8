package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i], _ = n.Row["title"].(string)
	}
	return out
}

func newTestLoader(t *testing.T, exec QueryExecutor, batchSize int, specs ...ChildSpec) *ChildLoader {
	t.Helper()
	a, err := Partition(testArtists, "id", artistSpec().Ordering, batchSize)
	require.NoError(t, err)
	l, err := NewChildLoader(exec, a, specs)
	require.NoError(t, err)
	return l
}

func TestChildLoader_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("GroupsAndOrdersChildren", func(t *testing.T) {
		exec := musicExecutor()
		l := newTestLoader(t, exec, 2, albumSpec())

		// batch 1 holds Alice Coltrane (4) and John Coltrane (2)
		ci, err := l.Load(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, 1, ci.Batch())
		assert.Equal(t, 3, ci.Len())
		assert.Equal(t, []string{"A Love Supreme", "Giant Steps"}, titles(ci.Children("albums", 2)))
		assert.Equal(t, []string{"Journey in Satchidananda"}, titles(ci.Children("albums", int64(4))))
		assert.Equal(t, 1, exec.countByBatch("albums", 1))
	})

	t.Run("ParentWithoutChildrenIsEmpty", func(t *testing.T) {
		l := newTestLoader(t, musicExecutor(), 2, albumSpec())

		// batch 2 holds Miles Davis (1) and Bill Evans (5)
		ci, err := l.Load(ctx, 2)
		require.NoError(t, err)

		evans := ci.Children("albums", 5)
		require.NotNil(t, evans)
		assert.Empty(t, evans)
	})

	t.Run("OutOfRangeIsEmptyWithoutQuery", func(t *testing.T) {
		exec := musicExecutor()
		l := newTestLoader(t, exec, 2, albumSpec())

		for _, b := range []int{0, 4, 99, -1} {
			ci, err := l.Load(ctx, b)
			require.NoError(t, err)
			assert.Equal(t, 0, ci.Len())
		}
		assert.Equal(t, 0, exec.count("albums"))
	})

	t.Run("NestedLevelsOneQueryPerTable", func(t *testing.T) {
		exec := musicExecutor()
		l := newTestLoader(t, exec, 2, albumSpec(songSpec()))

		ci, err := l.Load(ctx, 1)
		require.NoError(t, err)

		albums := ci.Children("albums", 2)
		require.Len(t, albums, 2)
		assert.Equal(t, []string{"Acknowledgement", "Resolution"}, titles(albums[0].Children["songs"]))
		assert.Equal(t, []string{"Giant Steps"}, titles(albums[1].Children["songs"]))

		journey := ci.Children("albums", 4)
		require.Len(t, journey, 1)
		assert.NotNil(t, journey[0].Children["songs"])
		assert.Empty(t, journey[0].Children["songs"])

		assert.Equal(t, 1, exec.countByBatch("albums", 1))
		assert.Equal(t, 1, exec.countByBatch("songs", 1))
		assert.Equal(t, 0, exec.openCursors())
	})

	t.Run("NestedLevelQueriedWhenParentLevelEmpty", func(t *testing.T) {
		exec := musicExecutor()
		l := newTestLoader(t, exec, 1, albumSpec(songSpec()))

		// batch 4 holds only Bill Evans, who has no albums
		_, err := l.Load(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 1, exec.countByBatch("songs", 4))
	})

	t.Run("OrphanRowsDropped", func(t *testing.T) {
		exec := musicExecutor().handle("albums", allRows(testAlbums))
		l := newTestLoader(t, exec, 2, albumSpec())

		ci, stats, err := l.load(ctx, exec, 3)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Rows)
		assert.Equal(t, len(testAlbums)-1, stats.OrphanRows)
		assert.Equal(t, []string{"Brilliant Corners"}, titles(ci.Children("albums", 3)))
	})

	t.Run("QueryFailure", func(t *testing.T) {
		boom := errors.New("connection reset")
		exec := musicExecutor().handle("albums", func(Params) ([]Row, error) { return nil, boom })
		l := newTestLoader(t, exec, 2, albumSpec())

		_, err := l.Load(ctx, 2)
		require.ErrorIs(t, err, boom)

		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, 2, qe.Batch)
		assert.Equal(t, "albums", qe.Table)
		assert.Equal(t, "albums", qe.Query)
		assert.Contains(t, err.Error(), "batch 2")
	})

	t.Run("CloseFailureReported", func(t *testing.T) {
		exec := musicExecutor()
		exec.closeErr = errors.New("cursor close failed")
		l := newTestLoader(t, exec, 2, albumSpec())

		_, err := l.Load(ctx, 1)
		require.Error(t, err)
		var qe *QueryError
		require.ErrorAs(t, err, &qe)
		assert.Equal(t, 1, qe.Batch)
	})

	t.Run("Release", func(t *testing.T) {
		l := newTestLoader(t, musicExecutor(), 5, albumSpec())
		ci, err := l.Load(ctx, 1)
		require.NoError(t, err)
		require.Positive(t, ci.Len())

		ci.Release()
		assert.Equal(t, 0, ci.Len())
		assert.Empty(t, ci.Children("albums", 1))
	})
}

func TestNewChildLoader_Validation(t *testing.T) {
	a, err := Partition(testArtists, "id", artistSpec().Ordering, 2)
	require.NoError(t, err)

	tests := []struct {
		name  string
		exec  QueryExecutor
		a     *Assignment
		specs []ChildSpec
	}{
		{name: "nil executor", exec: nil, a: a, specs: []ChildSpec{albumSpec()}},
		{name: "nil assignment", exec: musicExecutor(), a: nil, specs: []ChildSpec{albumSpec()}},
		{name: "missing name", exec: musicExecutor(), a: a, specs: []ChildSpec{{IDColumn: "id", ParentColumn: "artist_id", Query: Query{Template: "q"}}}},
		{name: "missing parent column", exec: musicExecutor(), a: a, specs: []ChildSpec{{Name: "albums", IDColumn: "id", Query: Query{Template: "q"}}}},
		{name: "missing id column", exec: musicExecutor(), a: a, specs: []ChildSpec{{Name: "albums", ParentColumn: "artist_id", Query: Query{Template: "q"}}}},
		{name: "missing query", exec: musicExecutor(), a: a, specs: []ChildSpec{{Name: "albums", IDColumn: "id", ParentColumn: "artist_id"}}},
		{name: "duplicate table", exec: musicExecutor(), a: a, specs: []ChildSpec{albumSpec(), albumSpec()}},
		{name: "bad nested ordering", exec: musicExecutor(), a: a, specs: []ChildSpec{albumSpec(ChildSpec{
			Name: "songs", IDColumn: "id", ParentColumn: "album_id", Query: Query{Template: "q"}, Ordering: []SortKey{{}},
		})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChildLoader(tt.exec, tt.a, tt.specs)
			require.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}
