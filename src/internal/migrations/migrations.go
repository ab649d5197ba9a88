// Package migrations applies an ordered chain of schema changes to a database exactly once.
//
// A State is built by applying named changes to InitialState().  ApplyMigrations brings a
// database up to a State, recording each step in the migrations table; concurrent callers
// serialize on that table, so it is safe for every worker process to call it at startup.
package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/softwareheritage/swh-dedup/src/internal/dbutil"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
	"go.uber.org/zap"
)

// Env is passed to every change.
type Env struct {
	Tx      *sqlutil.Tx
	Dialect sqlutil.Dialect
}

// Func is a single schema change.  It runs inside the transaction in env.Tx.
type Func func(ctx context.Context, env Env) error

// State is a point in the chain of migrations.
type State struct {
	n      int
	prev   *State
	name   string
	change Func
}

// InitialState is the state of an empty database.
func InitialState() State {
	return State{
		name:   "init",
		change: func(context.Context, Env) error { return nil },
	}
}

// Apply returns the state reached by applying fn to s.
func (s State) Apply(name string, fn Func) State {
	prev := s
	return State{n: s.n + 1, prev: &prev, name: name, change: fn}
}

// Number is the position of s in the chain; InitialState is 0.
func (s State) Number() int { return s.n }

// Name is the name the state was applied with.
func (s State) Name() string { return s.name }

func (s State) at(n int) State {
	for s.n > n && s.prev != nil {
		s = *s.prev
	}
	return s
}

const createMigrationsTable = `CREATE TABLE IF NOT EXISTS migrations (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	start_time TIMESTAMP NOT NULL,
	end_time TIMESTAMP
)`

// ApplyMigrations applies every step between the database's current state and state.  It fails
// if the database is ahead of state.
func ApplyMigrations(ctx context.Context, db *sqlutil.DB, baseEnv Env, state State) error {
	dialect := sqlutil.DialectOf(db)
	for {
		var done bool
		if err := dbutil.WithTx(ctx, db, func(ctx context.Context, tx *sqlutil.Tx) error {
			done = false
			if _, err := tx.ExecContext(ctx, createMigrationsTable); err != nil {
				return errors.EnsureStack(err)
			}
			if dialect == sqlutil.DialectPostgres {
				if _, err := tx.ExecContext(ctx, `LOCK TABLE migrations IN EXCLUSIVE MODE`); err != nil {
					return errors.EnsureStack(err)
				}
			}
			current, err := currentVersion(ctx, tx)
			if err != nil {
				return err
			}
			if current > state.Number() {
				return errors.Errorf("database is at migration %d, which is newer than %d (%s)", current, state.Number(), state.Name())
			}
			if current == state.Number() {
				done = true
				return nil
			}
			next := state.at(current + 1)
			env := baseEnv
			env.Tx = tx
			env.Dialect = dialect
			return applyOne(ctx, env, next)
		}); err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func applyOne(ctx context.Context, env Env, s State) (retErr error) {
	ctx, end := log.SpanContextL(ctx, "migration", log.InfoLevel, zap.Int("id", s.n), zap.String("name", s.name))
	defer end(log.Errorp(&retErr))
	insert := env.Tx.Rebind(`INSERT INTO migrations (id, name, start_time) VALUES (?, ?, CURRENT_TIMESTAMP)`)
	if _, err := env.Tx.ExecContext(ctx, insert, s.n, s.name); err != nil {
		return errors.Wrapf(err, "record start of migration %d", s.n)
	}
	if err := s.change(ctx, env); err != nil {
		return errors.Wrapf(err, "migration %d (%s)", s.n, s.name)
	}
	update := env.Tx.Rebind(`UPDATE migrations SET end_time = CURRENT_TIMESTAMP WHERE id = ?`)
	if _, err := env.Tx.ExecContext(ctx, update, s.n); err != nil {
		return errors.Wrapf(err, "record end of migration %d", s.n)
	}
	return nil
}

// currentVersion returns the latest applied migration, or -1 for a fresh database.
func currentVersion(ctx context.Context, tx *sqlutil.Tx) (int, error) {
	var v sql.NullInt64
	if err := tx.GetContext(ctx, &v, `SELECT max(id) FROM migrations`); err != nil {
		return 0, errors.EnsureStack(err)
	}
	if !v.Valid {
		return -1, nil
	}
	return int(v.Int64), nil
}

// BlockUntil waits until the database has reached at least state.
func BlockUntil(ctx context.Context, db *sqlutil.DB, state State) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(200*time.Millisecond), ctx)
	return errors.EnsureStack(backoff.Retry(func() error {
		var v sql.NullInt64
		if err := db.GetContext(ctx, &v, `SELECT max(id) FROM migrations`); err != nil {
			return errors.EnsureStack(err)
		}
		if !v.Valid || int(v.Int64) < state.Number() {
			return errors.Errorf("waiting for migration %d, at %d", state.Number(), v.Int64)
		}
		return nil
	}, b))
}
