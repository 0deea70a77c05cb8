package sqlexec

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the placeholder syntax of a driver.
type Dialect int

// Supported placeholder dialects.
const (
	// DialectQuestion uses "?" placeholders (SQLite, MySQL).
	DialectQuestion Dialect = iota

	// DialectDollar uses numbered "$1" placeholders (PostgreSQL).
	DialectDollar
)

// Registered driver names.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
)

// DialectFor returns the dialect of a registered database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "sqlite3", DriverMySQL:
		return DialectQuestion, nil
	case DriverPostgres, "postgres", "postgresql":
		return DialectDollar, nil
	default:
		return 0, fmt.Errorf("unsupported driver %q (supported: %s, %s, %s)",
			driver, DriverSQLite, DriverMySQL, DriverPostgres)
	}
}

// CanonicalDriver maps driver aliases to the name registered with
// database/sql. Unknown names are returned lowercased.
func CanonicalDriver(driver string) string {
	switch d := strings.ToLower(strings.TrimSpace(driver)); d {
	case "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql":
		return DriverPostgres
	default:
		return d
	}
}

// placeholder returns the n-th (1-based) placeholder.
func (d Dialect) placeholder(n int) string {
	if d == DialectDollar {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// String returns the dialect name.
func (d Dialect) String() string {
	if d == DialectDollar {
		return "dollar"
	}
	return "question"
}
