package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Config selects the driver and connection parameters. Server drivers use
// the User..Name fields; sqlite uses Path.
type Config struct {
	Driver      string // mysql, postgres or sqlite
	User        string
	Pass        string
	Host        string
	Port        string
	Name        string
	SSLMode     string // postgres only
	Path        string // sqlite only
	LockTimeout time.Duration

	TxTimeout    time.Duration // bound of a single unit-of-work attempt
	MaxAttempts  int           // attempts for units hitting transient faults
	RetryBackoff time.Duration // initial backoff between attempts
}

// DB is a connection pool that knows its SQL dialect and the retry policy
// for units of work.
type DB struct {
	*sql.DB
	Dialect Dialect

	txTimeout    time.Duration
	maxAttempts  int
	retryBackoff time.Duration
}

// Open connects to the configured database and verifies the connection.
func Open(cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	lockWait := cfg.LockTimeout
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}

	var driverName, dsn string
	switch dialect {
	case MySQL:
		auth := cfg.User
		if cfg.Pass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
		}
		secs := int(lockWait / time.Second)
		if secs < 1 {
			secs = 1
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		driverName = "mysql"
		dsn = fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&innodb_lock_wait_timeout=%d",
			auth, cfg.Host, cfg.Port, cfg.Name, secs)
	case Postgres:
		ssl := cfg.SSLMode
		if ssl == "" {
			ssl = "disable"
		}
		driverName = "pgx"
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s lock_timeout=%d timezone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Pass, cfg.Name, ssl, lockWait.Milliseconds())
	case SQLite:
		q := url.Values{}
		q.Add("_pragma", "foreign_keys(1)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", lockWait.Milliseconds()))
		q.Add("_time_format", "sqlite")
		driverName = "sqlite"
		dsn = "file:" + cfg.Path + "?" + q.Encode()
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if dialect == SQLite {
		// one writer; units of work queue on the pool instead of failing busy
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	out := &DB{
		DB:           db,
		Dialect:      dialect,
		txTimeout:    cfg.TxTimeout,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
	}
	if out.txTimeout <= 0 {
		out.txTimeout = 5 * time.Second
	}
	if out.maxAttempts < 1 {
		out.maxAttempts = 3
	}
	if out.retryBackoff <= 0 {
		out.retryBackoff = 50 * time.Millisecond
	}
	return out, nil
}
