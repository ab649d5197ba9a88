package dbutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/softwareheritage/swh-dedup/src/internal/errors"
	"github.com/softwareheritage/swh-dedup/src/internal/log"
	"github.com/softwareheritage/swh-dedup/src/internal/sqlutil"
	"go.uber.org/zap"
)

type withTxConfig struct {
	sql.TxOptions
	backOff backoff.BackOff
}

// WithTxOption parameterizes WithTx.
type WithTxOption func(c *withTxConfig)

// WithBackOff sets the retry policy for transient errors.
func WithBackOff(b backoff.BackOff) WithTxOption {
	return func(c *withTxConfig) { c.backOff = b }
}

// WithTx calls cb inside a transaction, committing if cb returns nil and rolling back
// otherwise.  Transactions that fail with a transient error (see IsTransientError) are retried
// from the start, so cb must not have side effects outside the transaction.
func WithTx(ctx context.Context, db *sqlutil.DB, cb func(ctx context.Context, tx *sqlutil.Tx) error, opts ...WithTxOption) error {
	c := &withTxConfig{
		backOff: backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return errors.EnsureStack(backoff.RetryNotify(func() error {
		err := tryTxFunc(ctx, db, cb, &c.TxOptions)
		if err != nil && !IsTransientError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(c.backOff, ctx), func(err error, _ time.Duration) {
		log.Debug(ctx, "retrying transaction", zap.Error(err))
	}))
}

func tryTxFunc(ctx context.Context, db *sqlutil.DB, cb func(context.Context, *sqlutil.Tx) error, txOpts *sql.TxOptions) (retErr error) {
	tx, err := db.BeginTxx(ctx, txOpts)
	if err != nil {
		return errors.EnsureStack(err)
	}
	defer func() {
		if retErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				log.Error(ctx, "problem rolling back transaction", zap.Error(rbErr), zap.NamedError("cause", retErr))
			}
		}
	}()
	if err := cb(ctx, tx); err != nil {
		return err
	}
	return errors.EnsureStack(tx.Commit())
}
