package dbutil

import (
	"time"

	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
)

const (
	// DefaultSSLMode is the sslmode used for postgres connections unless overridden.
	DefaultSSLMode = "disable"
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default number of idle connections to keep.
	DefaultMaxIdleConns = 2
	// DefaultBusyTimeout is how long a SQLite connection waits on a locked database.
	DefaultBusyTimeout = 10 * time.Second
)

// Option configures a DB.
type Option func(*dbConfig)

// WithURL configures the DB from a parsed URL.  The password, if any, is separate.
func WithURL(u *sqlutil.URL, password string) Option {
	return func(dbc *dbConfig) {
		dbc.dialect = sqlutil.DialectPostgres
		if u.Protocol == sqlutil.ProtocolSQLite {
			dbc.dialect = sqlutil.DialectSQLite
		}
		dbc.host = u.Host
		dbc.port = int(u.Port)
		dbc.user = u.User
		dbc.password = password
		dbc.name = u.Database
		if mode, ok := u.Params["sslmode"]; ok {
			dbc.sslMode = mode
		}
	}
}

// WithHostPort sets the postgres host and port.
func WithHostPort(host string, port int) Option {
	return func(dbc *dbConfig) {
		dbc.dialect = sqlutil.DialectPostgres
		dbc.host = host
		dbc.port = port
	}
}

// WithDBName sets the postgres database name.
func WithDBName(name string) Option {
	return func(dbc *dbConfig) { dbc.name = name }
}

// WithUserPassword sets the postgres credentials.
func WithUserPassword(user, password string) Option {
	return func(dbc *dbConfig) {
		dbc.user = user
		dbc.password = password
	}
}

// WithSQLiteFile opens the SQLite database at path instead of connecting to postgres.
func WithSQLiteFile(path string) Option {
	return func(dbc *dbConfig) {
		dbc.dialect = sqlutil.DialectSQLite
		dbc.name = path
	}
}

// WithMaxOpenConns sets the maximum number of open connections; 0 means unlimited.
func WithMaxOpenConns(n int) Option {
	return func(dbc *dbConfig) { dbc.maxOpenConns = n }
}

// WithMaxIdleConns sets the number of idle connections kept in the pool.
func WithMaxIdleConns(n int) Option {
	return func(dbc *dbConfig) { dbc.maxIdleConns = n }
}

// WithBusyTimeout sets how long SQLite waits for a lock before failing.
func WithBusyTimeout(d time.Duration) Option {
	return func(dbc *dbConfig) { dbc.busyTimeout = d }
}
