package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

type txKey struct{}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxManager runs a function inside a single database transaction.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sqlTxManager struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// TxOption configures a TxManager.
type TxOption func(*sqlTxManager)

// WithIsolation sets the isolation level for every transaction the manager opens.
// READ COMMITTED keeps concurrent supersedes of the same target from deadlocking on
// MySQL gap locks; the unique active index still rejects the losing writer.
func WithIsolation(level sql.IsolationLevel) TxOption {
	return func(m *sqlTxManager) {
		m.opts = &sql.TxOptions{Isolation: level}
	}
}

// NewTxManager creates a TxManager for db. Without options the driver default
// isolation level is used.
func NewTxManager(db *sql.DB, opts ...TxOption) TxManager {
	m := &sqlTxManager{db: db}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithTx executes fn within a transaction carried in ctx. Nested calls join the
// outer transaction instead of opening a new one. The transaction is rolled back when
// fn returns an error or panics; a failed rollback is reported together with fn's error.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, m.opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierror.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTx returns the transaction stored in ctx, or db when there is none.
func GetTx(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db
}
