// Package dockertestenv provides test databases backed by docker containers.
package dockertestenv

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/softwareheritage/swh-dedup/src/internal/dbutil"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
	"github.com/softwareheritage/swh-dedup/src/internal/testutil"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// EnvPostgres enables tests against a postgres container when set to 1.
	EnvPostgres = "DEDUP_TEST_POSTGRES"

	postgresImage           = "postgres:15-alpine"
	DefaultPostgresUser     = "swh"
	DefaultPostgresPassword = "correcthorsebatterystable"
	DefaultPostgresDatabase = "swh"
)

// PostgresEnabled reports whether postgres tests should run.
func PostgresEnabled() bool {
	return os.Getenv(EnvPostgres) == "1"
}

var (
	containerOnce sync.Once
	containerURL  string
	containerErr  error
)

// postgresURL starts the shared postgres container on first use.  The container outlives the
// test and is reaped by testcontainers when the process exits.
func postgresURL() (string, error) {
	containerOnce.Do(func() {
		ctx := context.Background()
		c, err := postgres.Run(ctx, postgresImage,
			postgres.WithDatabase(DefaultPostgresDatabase),
			postgres.WithUsername(DefaultPostgresUser),
			postgres.WithPassword(DefaultPostgresPassword),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			containerErr = errors.Wrap(err, "start postgres container")
			return
		}
		containerURL, containerErr = c.ConnectionString(ctx, "sslmode=disable")
	})
	return containerURL, errors.EnsureStack(containerErr)
}

// NewPostgresDB creates an ephemeral database in the shared postgres container and drops it
// when the test ends.  The test is skipped unless EnvPostgres is set.
func NewPostgresDB(t testing.TB) *sqlutil.DB {
	if !PostgresEnabled() {
		t.Skipf("set %s=1 to run against postgres", EnvPostgres)
	}
	ctx := pctx.TestContext(t)
	url, err := postgresURL()
	require.NoError(t, err, "postgres container should start")
	u, err := sqlutil.ParseURL(url)
	require.NoError(t, err)
	password := sqlutil.Password(url)

	admin := testutil.OpenDB(t, dbutil.WithURL(u, password), dbutil.WithMaxOpenConns(1))
	require.NoError(t, dbutil.WaitUntilReady(ctx, admin))
	name := testutil.GenerateEphemeralDBName(t)
	_, err = admin.ExecContext(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)

	u.Database = name
	db, err := dbutil.NewDB(dbutil.WithURL(u, password))
	require.NoError(t, err)
	// Cleanups run in reverse, so admin is still open here.
	t.Cleanup(func() {
		require.NoError(t, db.Close())
		_, err := admin.ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+name)
		require.NoError(t, err)
	})
	return db
}

// NewTestDB returns an empty postgres database when EnvPostgres is set, and an empty SQLite
// database otherwise.
func NewTestDB(t testing.TB) *sqlutil.DB {
	if PostgresEnabled() {
		return NewPostgresDB(t)
	}
	return testutil.NewTestDB(t)
}
