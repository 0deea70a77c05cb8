package batch

import "context"

// QueryExecutor runs parameterized queries against the data store.
// Parameters are named and must be bound by the executor, never concatenated
// into the query text.
type QueryExecutor interface {
	Execute(ctx context.Context, query Query, params Params) (ResultSet, error)
}

// ResultSet is a lazy, finite, forward-only sequence of rows. It is not
// restartable: a second pass requires executing the query again.
type ResultSet interface {
	// Next advances to the next row and reports whether one is available.
	Next() bool

	// Row returns the current row. The map is owned by the caller.
	Row() Row

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the cursor. It is safe to call more than once.
	Close() error
}

// Session is an executor checked out from a bounded pool for one batch.
type Session interface {
	QueryExecutor

	// Close returns the session to its pool.
	Close() error
}

// SessionProvider is implemented by executors that hand out pooled sessions.
// When the executor passed to a Processor implements it, every batch acquires
// one session before its first query and releases it once loading finishes,
// including on error.
type SessionProvider interface {
	Acquire(ctx context.Context) (Session, error)
}
