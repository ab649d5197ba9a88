package dbutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
)

func newSQLite(t *testing.T) *sqlutil.DB {
	t.Helper()
	db, err := NewDB(WithSQLiteFile(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPostgresDSN(t *testing.T) {
	driver, dsn := GetDSN(WithHostPort("db", 5433), WithDBName("dedup"), WithUserPassword("swh", "pw"))
	require.Equal(t, sqlutil.DriverPostgres, driver)
	for _, want := range []string{"host=db", "port=5433", "dbname=dedup", "user=swh", "password=pw", "sslmode=disable"} {
		require.True(t, strings.Contains(dsn, want), "dsn %q should contain %q", dsn, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	driver, dsn := GetDSN(WithSQLiteFile("/tmp/x.db"))
	require.Equal(t, sqlutil.DriverSQLite, driver)
	require.True(t, strings.HasPrefix(dsn, "file:/tmp/x.db?"))
	require.True(t, strings.Contains(dsn, "_txlock=immediate"))
}

func TestNewDBValidation(t *testing.T) {
	_, err := NewDB(WithHostPort("db", 5432))
	require.YesError(t, err)
	_, err = NewDB(WithDBName("dedup"))
	require.YesError(t, err)
}

func TestOpenURLSQLite(t *testing.T) {
	ctx := pctx.TestContext(t)
	db, err := OpenURL("sqlite://" + filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, sqlutil.DialectSQLite, sqlutil.DialectOf(db))
	require.NoError(t, WaitUntilReady(ctx, db))
}

func TestIsUniqueViolation(t *testing.T) {
	ctx := pctx.TestContext(t)
	db := newSQLite(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT UNIQUE)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (id, name) VALUES (1, 'a')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (id, name) VALUES (2, 'a')`)
	require.True(t, IsUniqueViolation(err), "duplicate name: %v", err)
	_, err = db.ExecContext(ctx, `INSERT INTO t (id, name) VALUES (1, 'b')`)
	require.True(t, IsUniqueViolation(err), "duplicate id: %v", err)

	require.True(t, IsUniqueViolation(errors.EnsureStack(&pgconn.PgError{Code: pgerrcode.UniqueViolation})))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}))
	require.False(t, IsUniqueViolation(errors.New("nope")))
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := pctx.TestContext(t)
	db := newSQLite(t)
	_, err := db.ExecContext(ctx, `CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	boom := errors.New("boom")
	err = WithTx(ctx, db, func(ctx context.Context, tx *sqlutil.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO t (id) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT count(*) FROM t`))
	require.Equal(t, 0, n)

	require.NoError(t, WithTx(ctx, db, func(ctx context.Context, tx *sqlutil.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t (id) VALUES (1)`)
		return err
	}))
	require.NoError(t, db.GetContext(ctx, &n, `SELECT count(*) FROM t`))
	require.Equal(t, 1, n)
}

func TestWithTxRetriesTransient(t *testing.T) {
	ctx := pctx.TestContext(t)
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE t").WillReturnError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE t").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, WithTx(ctx, db, func(ctx context.Context, tx *sqlutil.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE t SET x = 1")
		return errors.EnsureStack(err)
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxDoesNotRetryPermanent(t *testing.T) {
	ctx := pctx.TestContext(t)
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE t").WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
	mock.ExpectRollback()

	err = WithTx(ctx, db, func(ctx context.Context, tx *sqlutil.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE t SET x = 1")
		return errors.EnsureStack(err)
	})
	require.YesError(t, err)
	require.False(t, IsTransientError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
