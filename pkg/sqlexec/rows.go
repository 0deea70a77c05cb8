package sqlexec

import (
	"database/sql"

	"github.com/rshade/batchload/pkg/batch"
)

// resultSet adapts *sql.Rows to batch.ResultSet.
type resultSet struct {
	rows   *sql.Rows
	cols   []string
	cur    batch.Row
	err    error
	closed bool
}

func newResultSet(rows *sql.Rows) *resultSet {
	return &resultSet{rows: rows}
}

// Next implements batch.ResultSet.
func (r *resultSet) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	if !r.rows.Next() {
		return false
	}

	if r.cols == nil {
		cols, err := r.rows.Columns()
		if err != nil {
			r.err = err
			return false
		}
		r.cols = cols
	}

	values := make([]any, len(r.cols))
	dest := make([]any, len(r.cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.err = err
		return false
	}

	row := make(batch.Row, len(r.cols))
	for i, col := range r.cols {
		row[col] = normalizeValue(values[i])
	}
	r.cur = row
	return true
}

// Row implements batch.ResultSet.
func (r *resultSet) Row() batch.Row {
	return r.cur
}

// Err implements batch.ResultSet.
func (r *resultSet) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close implements batch.ResultSet.
func (r *resultSet) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cur = nil
	return r.rows.Close()
}

// normalizeValue copies driver-owned byte slices into strings so rows stay
// valid after the next Scan and can serve as map keys.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
