package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"delivery-dispatch/internal/ports"
)

// ErrNoTx is returned by every repository method called outside UnitOfWork.WithinTx.
var ErrNoTx = errors.New("postgres: repository used outside a dispatch transaction")

type txCtxKey struct{}

// unitOfWork runs dispatch operations in one pgx transaction carried by the context.
type unitOfWork struct {
	pool *pgxpool.Pool
}

func NewUnitOfWork(pool *pgxpool.Pool) ports.UnitOfWork {
	return &unitOfWork{pool: pool}
}

// WithinTx commits when fn returns nil and rolls back otherwise, including on panic.
// A nested call joins the transaction already in ctx.
func (uow *unitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := currentTx(ctx); ok {
		return fn(ctx)
	}
	if uow.pool == nil {
		return fmt.Errorf("begin dispatch tx: %w", ErrNoTx)
	}

	tx, err := uow.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin dispatch tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit dispatch tx: %w", err)
	}
	return nil
}

func currentTx(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx, ok
}

// txFrom is the first call of every repository method.
func txFrom(ctx context.Context) (pgx.Tx, error) {
	if tx, ok := currentTx(ctx); ok {
		return tx, nil
	}
	return nil, ErrNoTx
}
