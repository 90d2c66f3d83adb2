package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
// Repository methods accept it so one transaction can span repositories.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Runner executes a function inside a database transaction.
type Runner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
}

// PoolRunner runs transactions at the RepeatableRead isolation level.
type PoolRunner struct {
	pool *pgxpool.Pool
}

// NewRunner constructs a PoolRunner for the given pool.
func NewRunner(pool *pgxpool.Pool) *PoolRunner {
	return &PoolRunner{pool: pool}
}

// WithTx executes fn inside a repeatable-read transaction. Any error from fn
// rolls the whole transaction back.
func (r *PoolRunner) WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("platform/db: runner not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
