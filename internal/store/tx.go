// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 cr0n Contributors

package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

type txKey struct{}

// Transactor runs functions inside database transactions. The active pgx.Tx
// is stored in the context so repositories can join it through QuerierFrom.
type Transactor struct {
	pool       Pool
	maxRetries uint64
	backoff    time.Duration
}

// TransactorOption configures a Transactor.
type TransactorOption func(*Transactor)

// WithSerializationRetries sets how many times a serializable transaction is
// retried after a serialization failure.
func WithSerializationRetries(n uint64, backoff time.Duration) TransactorOption {
	return func(t *Transactor) {
		t.maxRetries = n
		if backoff > 0 {
			t.backoff = backoff
		}
	}
}

// NewTransactor creates a Transactor backed by pool.
func NewTransactor(pool Pool, opts ...TransactorOption) *Transactor {
	t := &Transactor{pool: pool, maxRetries: 3, backoff: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// InTransaction begins a read-committed transaction, stores it in context
// and calls fn. The transaction commits when fn returns nil.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return t.run(ctx, pgx.TxOptions{}, fn)
}

// InSerializable runs fn in a SERIALIZABLE transaction, retrying the whole
// function when PostgreSQL reports a serialization failure.
func (t *Transactor) InSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.Serializable}
	backoff := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error { //nolint:wrapcheck // errors carry codes
		err := t.run(ctx, opts, fn)
		if IsSerializationFailure(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (t *Transactor) run(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.BeginTx(ctx, opts)
	if err != nil {
		return oops.Code("TX_BEGIN_FAILED").Wrap(err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx) //nolint:errcheck // fn error takes precedence
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.Code("TX_COMMIT_FAILED").Wrap(err)
	}
	return nil
}

// QuerierFrom returns the transaction stored in ctx, or fallback when ctx
// carries none.
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// IsSerializationFailure reports whether err is a PostgreSQL 40001 error.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.SerializationFailure
}

// IsUniqueViolation reports whether err is a PostgreSQL 23505 error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
