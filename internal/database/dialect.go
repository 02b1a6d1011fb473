package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Dialect names the SQL flavour behind a DB.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a DB_DRIVER value to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("database: unsupported driver %q", driver)
}

// Rebind rewrites ? placeholders into the dialect's form. Queries are
// written with ? everywhere; Postgres needs $1, $2, ...
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// SupportsSkipLocked reports whether the store can claim rows with
// FOR UPDATE SKIP LOCKED.
func (d Dialect) SupportsSkipLocked() bool { return d == MySQL || d == Postgres }

// ForUpdate returns the row-lock suffix for a single-table SELECT, or "" when
// the store serializes writers itself.
func (d Dialect) ForUpdate() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// TxOptions returns the isolation used for units of work. Skip-locked claims
// rely on READ COMMITTED so a re-scan sees rows committed by other claimers.
func (d Dialect) TxOptions() *sql.TxOptions {
	if d == SQLite {
		return nil
	}
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}
