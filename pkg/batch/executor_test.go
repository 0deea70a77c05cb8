package batch

import (
	"context"
	"errors"
	"sync"
)

// memHandler answers one named query.
type memHandler func(params Params) ([]Row, error)

// memCall records one Execute call.
type memCall struct {
	Query  string
	Batch  any
	Params Params
}

// memExecutor is an in-memory QueryExecutor that records every call.
type memExecutor struct {
	mu       sync.Mutex
	handlers map[string]memHandler
	calls    []memCall
	closeErr error
	open     int
}

func newMemExecutor() *memExecutor {
	return &memExecutor{handlers: make(map[string]memHandler)}
}

func (m *memExecutor) handle(name string, h memHandler) *memExecutor {
	m.handlers[name] = h
	return m
}

func (m *memExecutor) Execute(_ context.Context, q Query, params Params) (ResultSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, memCall{Query: q.Name, Batch: params[ParamBatch], Params: params})
	h, ok := m.handlers[q.Name]
	if !ok {
		return nil, errors.New("no handler for query " + q.Name)
	}
	rows, err := h(params)
	if err != nil {
		return nil, err
	}
	m.open++
	return &memResultSet{rows: rows, owner: m, closeErr: m.closeErr}, nil
}

// countByBatch returns how many times query ran for batch.
func (m *memExecutor) countByBatch(query string, batch int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Query == query && c.Batch == batch {
			n++
		}
	}
	return n
}

func (m *memExecutor) count(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, c := range m.calls {
		if c.Query == query {
			n++
		}
	}
	return n
}

func (m *memExecutor) openCursors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

type memResultSet struct {
	rows     []Row
	pos      int
	owner    *memExecutor
	closed   bool
	closeErr error
}

func (r *memResultSet) Next() bool {
	if r.closed || r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *memResultSet) Row() Row {
	src := r.rows[r.pos-1]
	row := make(Row, len(src))
	for k, v := range src {
		row[k] = v
	}
	return row
}

func (r *memResultSet) Err() error { return nil }

func (r *memResultSet) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.owner.mu.Lock()
	r.owner.open--
	r.owner.mu.Unlock()
	return r.closeErr
}

// allRows returns every row of table.
func allRows(table []Row) memHandler {
	return func(Params) ([]Row, error) {
		return table, nil
	}
}

// rowsIn returns the rows of table whose column value is in the ids parameter.
func rowsIn(table []Row, column string) memHandler {
	return func(params Params) ([]Row, error) {
		ids, _ := params[ParamIDs].([]any)
		want := make(map[any]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
		var out []Row
		for _, row := range table {
			id, err := normalizeID(row[column])
			if err != nil {
				return nil, err
			}
			if want[id] {
				out = append(out, row)
			}
		}
		return out, nil
	}
}

var (
	testArtists = []Row{
		{"id": 1, "last_name": "Davis", "first_name": "Miles"},
		{"id": 2, "last_name": "Coltrane", "first_name": "John"},
		{"id": 3, "last_name": "Monk", "first_name": "Thelonious"},
		{"id": 4, "last_name": "Coltrane", "first_name": "Alice"},
		{"id": 5, "last_name": "Evans", "first_name": "Bill"},
	}

	// Artist 5 has no albums.
	testAlbums = []Row{
		{"id": 10, "artist_id": 4, "title": "Journey in Satchidananda"},
		{"id": 11, "artist_id": 2, "title": "Giant Steps"},
		{"id": 12, "artist_id": 2, "title": "A Love Supreme"},
		{"id": 13, "artist_id": 1, "title": "Kind of Blue"},
		{"id": 14, "artist_id": 1, "title": "Bitches Brew"},
		{"id": 15, "artist_id": 3, "title": "Brilliant Corners"},
	}

	testSongs = []Row{
		{"id": 100, "album_id": 12, "title": "Resolution", "track": 2},
		{"id": 101, "album_id": 12, "title": "Acknowledgement", "track": 1},
		{"id": 102, "album_id": 13, "title": "So What", "track": 1},
		{"id": 103, "album_id": 13, "title": "Freddie Freeloader", "track": 2},
		{"id": 104, "album_id": 11, "title": "Giant Steps", "track": 1},
	}
)

func artistSpec() PrimarySpec {
	return PrimarySpec{
		Name:     "artist",
		IDColumn: "id",
		KeyQuery: Query{Name: "artist.keys", Template: "SELECT id, last_name, first_name FROM artist"},
		RowQuery: Query{Name: "artist.rows", Template: "SELECT * FROM artist WHERE id IN (:ids)"},
		Ordering: []SortKey{Asc("last_name"), Asc("first_name")},
	}
}

func albumSpec(nested ...ChildSpec) ChildSpec {
	return ChildSpec{
		Name:         "albums",
		IDColumn:     "id",
		ParentColumn: "artist_id",
		Query:        Query{Name: "albums", Template: "SELECT * FROM album WHERE artist_id IN (:ids)"},
		Ordering:     []SortKey{Asc("title")},
		Children:     nested,
	}
}

func songSpec() ChildSpec {
	return ChildSpec{
		Name:         "songs",
		IDColumn:     "id",
		ParentColumn: "album_id",
		Query:        Query{Name: "songs", Template: "SELECT * FROM song WHERE album_id IN (:ids)"},
		Ordering:     []SortKey{Asc("track")},
	}
}

func musicExecutor() *memExecutor {
	return newMemExecutor().
		handle("artist.keys", allRows(testArtists)).
		handle("artist.rows", rowsIn(testArtists, "id")).
		handle("albums", rowsIn(testAlbums, "artist_id")).
		handle("songs", rowsIn(testSongs, "album_id"))
}
