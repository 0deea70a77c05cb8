package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rshade/batchload/pkg/batch"
)

// ErrClosed is returned when a closed session is used.
var ErrClosed = errors.New("session closed")

// Options configure Open.
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB executes batch queries against a database/sql pool. It implements both
// batch.QueryExecutor and batch.SessionProvider.
type DB struct {
	db      *sql.DB
	driver  string
	dialect Dialect
	stats   *Stats
}

var (
	_ batch.QueryExecutor   = (*DB)(nil)
	_ batch.SessionProvider = (*DB)(nil)
)

// Open connects to the database described by opts and verifies the
// connection.
func Open(ctx context.Context, opts Options) (*DB, error) {
	driver := CanonicalDriver(opts.Driver)
	if _, err := DialectFor(driver); err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, errors.New("dsn is required")
	}

	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}

	zerolog.Ctx(ctx).Debug().
		Str("component", "sqlexec").
		Str("driver", driver).
		Int("max_open_conns", opts.MaxOpenConns).
		Msg("database connected")

	return New(db, driver)
}

// New wraps an existing pool. The caller keeps ownership of db unless Close
// is called on the returned DB.
func New(db *sql.DB, driver string) (*DB, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	driver = CanonicalDriver(driver)
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	return &DB{db: db, driver: driver, dialect: dialect, stats: newStats()}, nil
}

// Execute implements batch.QueryExecutor.
func (d *DB) Execute(ctx context.Context, q batch.Query, params batch.Params) (batch.ResultSet, error) {
	return d.query(ctx, d.db, q, params)
}

// Acquire implements batch.SessionProvider. Each session pins one pooled
// connection until it is closed.
func (d *DB) Acquire(ctx context.Context) (batch.Session, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	return &session{db: d, conn: conn}, nil
}

// Exec runs a statement that returns no rows, such as DDL or inserts.
func (d *DB) Exec(ctx context.Context, template string, params batch.Params) (sql.Result, error) {
	query, args, err := Compile(template, params, d.dialect)
	if err != nil {
		return nil, err
	}
	return d.db.ExecContext(ctx, query, args...)
}

// SQL returns the underlying pool.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Driver returns the canonical driver name.
func (d *DB) Driver() string {
	return d.driver
}

// Dialect returns the placeholder dialect.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Stats returns the query counters.
func (d *DB) Stats() StatsSnapshot {
	return d.stats.Snapshot()
}

// Close closes the underlying pool.
func (d *DB) Close() error {
	return d.db.Close()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (d *DB) query(ctx context.Context, qr queryer, q batch.Query, params batch.Params) (batch.ResultSet, error) {
	query, args, err := Compile(q.Template, params, d.dialect)
	if err != nil {
		d.stats.record(q.Name, err)
		return nil, err
	}

	zerolog.Ctx(ctx).Trace().
		Str("component", "sqlexec").
		Str("query", q.Name).
		Int("args", len(args)).
		Msg("executing query")

	rows, err := qr.QueryContext(ctx, query, args...)
	d.stats.record(q.Name, err)
	if err != nil {
		return nil, err
	}
	return newResultSet(rows), nil
}

// session is a batch.Session bound to a single connection.
type session struct {
	db   *DB
	conn *sql.Conn

	mu     sync.Mutex
	closed bool
}

func (s *session) Execute(ctx context.Context, q batch.Query, params batch.Params) (batch.ResultSet, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return s.db.query(ctx, s.conn, q, params)
}

// Close returns the connection to the pool. It is safe to call more than once.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
