package dbutil

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v4/stdlib" // postgres driver
	"github.com/jmoiron/sqlx"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver
)

type dbConfig struct {
	dialect        sqlutil.Dialect
	host           string
	port           int
	user, password string
	name           string
	sslMode        string
	maxOpenConns   int
	maxIdleConns   int
	busyTimeout    time.Duration
}

func newConfig(opts ...Option) *dbConfig {
	dbc := &dbConfig{
		dialect:      sqlutil.DialectPostgres,
		sslMode:      DefaultSSLMode,
		maxOpenConns: DefaultMaxOpenConns,
		maxIdleConns: DefaultMaxIdleConns,
		busyTimeout:  DefaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(dbc)
	}
	return dbc
}

func postgresDSN(dbc *dbConfig) string {
	fields := map[string]string{
		"connect_timeout": "30",
		"sslmode":         dbc.sslMode,
		// Behaves with pgbouncer in transaction mode.
		"statement_cache_mode": "describe",
	}
	if dbc.host != "" {
		fields["host"] = dbc.host
	}
	if dbc.port != 0 {
		fields["port"] = strconv.Itoa(dbc.port)
	}
	if dbc.name != "" {
		fields["dbname"] = dbc.name
	}
	if dbc.user != "" {
		fields["user"] = dbc.user
	}
	if dbc.password != "" {
		fields["password"] = dbc.password
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

func sqliteDSN(dbc *dbConfig) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", dbc.busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	if dbc.name != ":memory:" {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	// Writers take the lock at BEGIN, so concurrent transactions queue on busy_timeout
	// instead of failing at their first write.
	q.Set("_txlock", "immediate")
	return "file:" + dbc.name + "?" + q.Encode()
}

// GetDSN returns the driver name and data source name for opts.
func GetDSN(opts ...Option) (driver, dsn string) {
	dbc := newConfig(opts...)
	if dbc.dialect == sqlutil.DialectSQLite {
		return sqlutil.DriverSQLite, sqliteDSN(dbc)
	}
	return sqlutil.DriverPostgres, postgresDSN(dbc)
}

// NewDB opens a connection pool.  It does not check that the database is reachable; see
// WaitUntilReady.
func NewDB(opts ...Option) (*sqlutil.DB, error) {
	dbc := newConfig(opts...)
	if dbc.name == "" {
		return nil, errors.New("must specify a database name")
	}
	if dbc.dialect == sqlutil.DialectPostgres && dbc.host == "" {
		return nil, errors.New("must specify a database host")
	}
	driver, dsn := GetDSN(opts...)
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.EnsureStack(err)
	}
	maxOpen := dbc.maxOpenConns
	if dbc.dialect == sqlutil.DialectSQLite && dbc.name == ":memory:" {
		// Every connection to :memory: is a distinct database.
		maxOpen = 1
	}
	if maxOpen != 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	// Always set these; 0 does not mean "use the default", it means "use zero".
	db.SetMaxIdleConns(dbc.maxIdleConns)
	return db, nil
}

// OpenURL opens the database named by a URL such as postgres://user:pw@host/db or
// sqlite:///path/to/file.db.
func OpenURL(raw string, opts ...Option) (*sqlutil.DB, error) {
	u, err := sqlutil.ParseURL(raw)
	if err != nil {
		return nil, err
	}
	return NewDB(append([]Option{WithURL(u, sqlutil.Password(raw))}, opts...)...)
}

// WaitUntilReady pings the database until it answers or ctx is done.
func WaitUntilReady(ctx context.Context, db *sqlutil.DB) error {
	const period = time.Second
	const timeout = time.Second
	log.Info(ctx, "waiting for db to be ready...")
	b := backoff.WithContext(backoff.NewConstantBackOff(period), ctx)
	return errors.EnsureStack(backoff.RetryNotify(func() error {
		ctx, cf := context.WithTimeout(ctx, timeout)
		defer cf()
		return errors.EnsureStack(db.PingContext(ctx))
	}, b, func(err error, _ time.Duration) {
		log.Info(ctx, "db is not ready", zap.Error(err))
	}))
}
