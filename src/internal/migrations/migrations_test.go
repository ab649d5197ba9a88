package migrations

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/softwareheritage/swh-dedup/src/internal/dbutil"
	"github.com/softwareheritage/swh-dedup/src/internal/pctx"
	"github.com/softwareheritage/swh-dedup/src/internal/require"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
	"golang.org/x/sync/errgroup"
)

func newDB(t *testing.T) *sqlutil.DB {
	t.Helper()
	db, err := dbutil.NewDB(dbutil.WithSQLiteFile(filepath.Join(t.TempDir(), "migrations.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testState() State {
	return InitialState().
		Apply("test 1", func(ctx context.Context, env Env) error {
			return nil
		}).
		Apply("test 2", func(ctx context.Context, env Env) error {
			_, err := env.Tx.ExecContext(ctx, `CREATE TABLE test_table1 (id INTEGER PRIMARY KEY, field1 TEXT)`)
			return err
		}).
		Apply("test 3", func(ctx context.Context, env Env) error {
			_, err := env.Tx.ExecContext(ctx, `CREATE TABLE test_table2 (id INTEGER PRIMARY KEY, field1 TEXT)`)
			return err
		})
}

func TestMigration(t *testing.T) {
	ctx := pctx.TestContext(t)
	db := newDB(t)
	state := testState()
	func() {
		eg, ctx := errgroup.WithContext(ctx)
		const numWaiters = 5
		for i := 0; i < numWaiters; i++ {
			eg.Go(func() error {
				return BlockUntil(ctx, db, state)
			})
		}
		eg.Go(func() error {
			time.Sleep(100 * time.Millisecond)
			return ApplyMigrations(ctx, db, Env{}, state)
		})
		require.NoError(t, eg.Wait())
	}()
	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT count(*) FROM migrations`))
	require.Equal(t, state.Number()+1, count)
	var max int
	require.NoError(t, db.GetContext(ctx, &max, `SELECT max(id) FROM migrations`))
	require.Equal(t, state.Number(), max)

	// Applying again is a no-op.
	require.NoError(t, ApplyMigrations(ctx, db, Env{}, state))
	require.NoError(t, db.GetContext(ctx, &count, `SELECT count(*) FROM migrations`))
	require.Equal(t, state.Number()+1, count)
}

func TestMigrationIncremental(t *testing.T) {
	ctx := pctx.TestContext(t)
	db := newDB(t)
	full := testState()
	partial := full.at(2)
	require.Equal(t, "test 2", partial.Name())
	require.NoError(t, ApplyMigrations(ctx, db, Env{}, partial))
	require.NoError(t, ApplyMigrations(ctx, db, Env{}, full))
	_, err := db.ExecContext(ctx, `INSERT INTO test_table2 (id, field1) VALUES (1, 'x')`)
	require.NoError(t, err)

	// An older binary refuses to run against a newer schema.
	require.YesError(t, ApplyMigrations(ctx, db, Env{}, partial))
}

func TestFailedMigrationRollsBack(t *testing.T) {
	ctx := pctx.TestContext(t)
	db := newDB(t)
	state := InitialState().Apply("broken", func(ctx context.Context, env Env) error {
		if _, err := env.Tx.ExecContext(ctx, `CREATE TABLE half_done (id INTEGER)`); err != nil {
			return err
		}
		_, err := env.Tx.ExecContext(ctx, `THIS IS NOT SQL`)
		return err
	})
	require.YesError(t, ApplyMigrations(ctx, db, Env{}, state))
	var n int
	require.NoError(t, db.GetContext(ctx, &n, `SELECT count(*) FROM sqlite_master WHERE name = 'half_done'`))
	require.Equal(t, 0, n)
}
