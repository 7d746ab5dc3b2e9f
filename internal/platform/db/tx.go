package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxOptions bounds how long a transaction may wait on locks and statements.
// Zero values leave the server defaults in place.
type TxOptions struct {
	LockTimeout      time.Duration
	StatementTimeout time.Duration
}

// WithTx executes fn within a read committed transaction. Row locks taken with
// SELECT ... FOR UPDATE are held until commit or rollback. Lock wait failures
// are reported as shared.ErrContention.
func WithTx(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", MapError(err))
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := opts.apply(ctx, tx); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return MapError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", MapError(err))
	}

	return nil
}

func (o TxOptions) apply(ctx context.Context, tx pgx.Tx) error {
	if o.LockTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('lock_timeout', $1, true)`, millis(o.LockTimeout)); err != nil {
			return fmt.Errorf("platform/db: set lock_timeout: %w", err)
		}
	}
	if o.StatementTimeout > 0 {
		if _, err := tx.Exec(ctx, `SELECT set_config('statement_timeout', $1, true)`, millis(o.StatementTimeout)); err != nil {
			return fmt.Errorf("platform/db: set statement_timeout: %w", err)
		}
	}
	return nil
}

func millis(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
